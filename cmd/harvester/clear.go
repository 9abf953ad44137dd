// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/internal/sink"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the documents of a rule set's index",
	Long: `Clear deletes every document from the index of the rule set. With
--metadata the index itself is deleted, including its mapping and _meta;
the next harvest recreates it when the rule set allows index creation.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().String("rules", "", "rule document (YAML or JSON)")
	clearCmd.Flags().StringSlice("es", nil, "Elasticsearch addresses")
	clearCmd.Flags().String("index", "", "index name, overriding the rule set's")
	clearCmd.Flags().Bool("metadata", false, "delete the index itself, not only its documents")

	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Harvest.RulesFile == "" {
		return fmt.Errorf("rule document required: use --rules or harvest.rules_file")
	}
	metadata, _ := cmd.Flags().GetBool("metadata")
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	rs, err := ruleset.NewLoader(log).Load(cfg.Harvest.RulesFile)
	if err != nil {
		return err
	}
	es, err := sink.NewElasticsearch(cfg.Elasticsearch, log)
	if err != nil {
		return err
	}

	ok, err := es.Clear(context.Background(), rs, metadata)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("clearing index %s was declined", es.IndexName(rs))
	}
	fmt.Fprintf(os.Stderr, "Cleared index %s\n", es.IndexName(rs))
	return nil
}
