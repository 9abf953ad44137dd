// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvester/internal/harvest"
	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/mapper"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/internal/runstore"
	"github.com/pdiddy/harvester/internal/sink"
	"github.com/pdiddy/harvester/internal/source"
	"github.com/pdiddy/harvester/internal/validate"
	"github.com/pdiddy/harvester/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest records from the configured source into Elasticsearch",
	Long: `Harvest fetches records page by page from a directory of XML files or a CSW
catalog, optionally validates them, maps them with the rule set and stores the
documents in Elasticsearch.

Per-record failures do not stop the run; they are listed in the report that
is printed at the end and saved to the run history.`,
	RunE: runHarvest,
}

func init() {
	f := harvestCmd.Flags()
	f.String("rules", "", "rule document (YAML or JSON)")
	f.Int("bulk-size", types.DefaultBulkSize, "records fetched per page")
	f.Int("limit", 0, "maximum number of records to harvest (0 for all)")
	f.Int("start", 0, "zero-based offset of the first record")
	f.Bool("bulk", false, "store each page with one bulk request")
	f.String("filter", "", "CEL expression over id and doc; false skips the record")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	f.String("source", "", "record source: dir or csw")
	f.String("dir", "", "directory of XML records (source dir)")
	f.String("pattern", "", "file glob within --dir (default *.xml)")
	f.String("csw-url", "", "CSW endpoint URL (source csw)")
	f.String("constraint", "", "CQL constraint sent with GetRecords")
	f.StringSlice("es", nil, "Elasticsearch addresses")
	f.String("index", "", "index name, overriding the rule set's")
	f.String("refresh", "", "refresh policy for stores: true, false or wait_for")
	f.Bool("validate", false, "validate records before mapping")
	f.StringSlice("validator", nil, "validator documents (repeatable)")
	f.String("runs-dir", "", "run history directory")
	f.Bool("no-stamp", false, "do not add harvest provenance to documents")

	rootCmd.AddCommand(harvestCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
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
	src, err := newSource(cfg.Source, log)
	if err != nil {
		return err
	}
	es, err := sink.NewElasticsearch(cfg.Elasticsearch, log)
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

	validators, err := loadValidators(cfg.Validation)
	if err != nil {
		return err
	}

	var post harvest.PostProcessor = harvest.Identity
	if noStamp, _ := cmd.Flags().GetBool("no-stamp"); !noStamp {
		post = &harvest.StampProcessor{}
	}

	var metrics *harvest.Metrics
	if cfg.Harvest.MetricsFile != "" {
		metrics = harvest.NewMetrics()
	}

	runner := &harvest.Runner{
		RuleSet:       rs,
		Source:        src,
		Mapper:        mapper.New(rs, opts...),
		Sink:          es,
		Validators:    validators,
		PostProcessor: post,
		Options:       cfg.Harvest,
		Logger:        log,
		Metrics:       metrics,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := runner.Run(ctx)

	if err := metrics.WriteFile(cfg.Harvest.MetricsFile); err != nil {
		log.Warn("Writing metrics failed", logger.Error(err))
	}
	if !cfg.Runs.Disabled {
		if err := saveReport(cfg.Runs, report); err != nil {
			log.Warn("Saving run report failed", logger.String("run_id", report.RunID), logger.Error(err))
		}
	}

	printReport(os.Stderr, report)

	errs := len(report.MessagesAt(types.LevelError))
	if report.FailedCount() > 0 || errs > 0 {
		return fmt.Errorf("harvest finished with %d failed record(s) and %d error(s)", report.FailedCount(), errs)
	}
	return nil
}

// newSource builds the record source selected by cfg.Kind.
func newSource(cfg types.SourceConfig, log logger.Logger) (harvest.Source, error) {
	switch cfg.Kind {
	case types.SourceDirectory, "":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("source directory required: use --dir or source.dir")
		}
		return source.NewDirectory(cfg.Dir, cfg.Pattern, log), nil
	case types.SourceCSW:
		if cfg.CSW.URL == "" {
			return nil, fmt.Errorf("CSW URL required: use --csw-url or source.csw.url")
		}
		return source.NewCSW(cfg.CSW, log)
	default:
		return nil, fmt.Errorf("unknown source kind %q: use dir or csw", cfg.Kind)
	}
}

func loadValidators(cfg types.ValidationConfig) ([]harvest.Validator, error) {
	if !cfg.Enabled || len(cfg.Files) == 0 {
		return nil, nil
	}
	loaded, err := validate.LoadAll(cfg.Files)
	if err != nil {
		return nil, err
	}
	out := make([]harvest.Validator, len(loaded))
	for i, v := range loaded {
		out[i] = v
	}
	return out, nil
}

func saveReport(cfg types.RunsConfig, report *types.Report) error {
	store, err := runstore.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return store.Save(ctx, report)
}
