// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/internal/sink"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Check rule documents and show the index mapping they produce",
}

// --- check subcommand ---

var rulesCheckCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Load rule documents and report configuration errors",
	Long: `Check loads every rule document, compiling all selection expressions, and
reports the first configuration error of each. It exits non-zero when any
document fails to load.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRulesCheck,
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	loader := ruleset.NewLoader(log)
	failed := 0
	for _, path := range args {
		rs, err := loader.Load(path)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "FAIL  %s: %v\n", path, err)
			continue
		}
		fmt.Fprintf(os.Stdout, "ok    %s: %s %s, %d fields, index %s\n",
			path, rs.Name, rs.Version, len(rs.Fields()), rs.IndexName())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d rule document(s) failed", failed, len(args))
	}
	return nil
}

// --- mapping subcommand ---

var rulesMappingCmd = &cobra.Command{
	Use:   "mapping <file>",
	Short: "Print the Elasticsearch mapping generated for a rule document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := ruleset.NewLoader(logger.NewNop()).Load(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"mappings": sink.BuildMapping(rs)})
	},
}

func init() {
	rulesCmd.AddCommand(rulesCheckCmd, rulesMappingCmd)
	rootCmd.AddCommand(rulesCmd)
}
