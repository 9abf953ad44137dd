// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the harvester CLI. It harvests XML
// metadata records from a directory or a CSW catalog, maps them with a rule
// set and stores the resulting documents in Elasticsearch.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/secrets"
	"github.com/pdiddy/harvester/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// flagKeys maps command-line flags to configuration keys. A flag is bound
// only on commands that define it.
var flagKeys = map[string]string{
	"rules":        "harvest.rules_file",
	"bulk-size":    "harvest.bulk_size",
	"limit":        "harvest.records_limit",
	"start":        "harvest.start_offset",
	"bulk":         "harvest.bulk_store",
	"filter":       "harvest.filter",
	"metrics-file": "harvest.metrics_file",
	"source":       "source.kind",
	"dir":          "source.dir",
	"pattern":      "source.pattern",
	"csw-url":      "source.csw.url",
	"constraint":   "source.csw.constraint",
	"es":           "elasticsearch.addresses",
	"index":        "elasticsearch.index",
	"refresh":      "elasticsearch.refresh",
	"validate":     "validation.enabled",
	"validator":    "validation.files",
	"log-level":    "logging.level",
	"runs-dir":     "runs.dir",
}

// rootCmd is the base command for the harvester CLI.
var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Harvest XML metadata records into a search index",
	Long: `harvester reads XML metadata records from a directory or an OGC CSW catalog,
maps them to index documents with a declarative rule set, and stores the
documents in Elasticsearch.

Every run produces a report of stored and failed records that is saved in
the local run history (see "harvester runs").`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./harvester.yaml or ~/.config/harvester/harvester.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("harvester")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "harvester"))
		}
	}

	viper.SetEnvPrefix("HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig binds the flags cmd defines, unmarshals the merged
// configuration and fills credentials from secrets.
func loadConfig(cmd *cobra.Command) (types.Config, error) {
	var cfg types.Config
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return cfg, fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	cfg.SetDefaults()
	return cfg, nil
}

func newLogger(cfg types.Config) (logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
