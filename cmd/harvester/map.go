// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvester/internal/mapper"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/internal/source"
	"github.com/pdiddy/harvester/pkg/types"
)

var mapCmd = &cobra.Command{
	Use:   "map <file>",
	Short: "Map one XML record and print the document (dry run)",
	Long: `Map applies the rule set to a single XML record and prints the resulting
document as JSON without contacting Elasticsearch. Use it to develop and
debug rule documents.`,
	Args: cobra.ExactArgs(1),
	RunE: runMap,
}

func init() {
	mapCmd.Flags().String("rules", "", "rule document (YAML or JSON)")
	mapCmd.Flags().String("filter", "", "CEL expression over id and doc")

	rootCmd.AddCommand(mapCmd)
}

func runMap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Harvest.RulesFile == "" {
		return fmt.Errorf("rule document required: use --rules or harvest.rules_file")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	rs, err := ruleset.NewLoader(log).Load(cfg.Harvest.RulesFile)
	if err != nil {
		return err
	}
	opts := []mapper.Option{mapper.WithLogger(log)}
	if cfg.Harvest.Filter != "" {
		filter, err := mapper.NewCELFilter(cfg.Harvest.Filter)
		if err != nil {
			return err
		}
		opts = append(opts, mapper.WithFilter(filter))
	}

	path := args[0]
	dir := source.NewDirectory(filepath.Dir(path), filepath.Base(path), log)
	report := types.NewPageReport()
	records, err := dir.Records(context.Background(), report)
	if err != nil {
		return err
	}
	for _, m := range report.Messages {
		fmt.Fprintf(os.Stderr, "%s %s\n", m.Level, m.Text)
	}
	if len(records) == 0 {
		return fmt.Errorf("no record read from %s", path)
	}

	doc, ok, err := mapper.New(rs, opts...).Map(records[0])
	if err != nil {
		return err
	}
	if !ok {
		if doc.ID != "" {
			fmt.Fprintf(os.Stderr, "Record %s skipped by filter\n", doc.ID)
		} else {
			fmt.Fprintf(os.Stderr, "Record %s skipped: rule set %s does not apply or no identifier\n", path, rs.Name)
		}
		return nil
	}

	fmt.Fprintf(os.Stderr, "Document id: %s\n", doc.ID)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
