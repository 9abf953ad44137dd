// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/mapper"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

// Runner executes one harvest run. Pages are processed one at a time:
// fetch, validate, map, post-process and store complete before the next
// page is requested.
type Runner struct {
	RuleSet       *ruleset.RuleSet
	Source        Source
	Mapper        Mapper
	Sink          Sink
	Validators    []Validator
	PostProcessor PostProcessor
	Options       types.HarvestConfig
	Logger        logger.Logger
	Metrics       *Metrics

	progress atomic.Uint64
}

// Timings accumulates time spent in each phase of a run.
type Timings struct {
	Fetch    time.Duration
	Validate time.Duration
	Map      time.Duration
	Store    time.Duration
	Pages    int
}

// Average returns the mean time per page of d.
func (t Timings) Average(d time.Duration) time.Duration {
	if t.Pages == 0 {
		return 0
	}
	return d / time.Duration(t.Pages)
}

// Progress returns the completion percentage of the current run.
func (r *Runner) Progress() float64 {
	return math.Float64frombits(r.progress.Load())
}

func (r *Runner) setProgress(pct float64) {
	r.progress.Store(math.Float64bits(pct))
}

// Run harvests the configured record range and returns the report. It
// never fails. Two conditions stop a run before any page is fetched, each
// leaving exactly one ERROR message: a sink that cannot be prepared, and a
// source whose record count cannot be read, since without it there is no
// range to page over. Cancelling ctx stops the run at the next page
// boundary.
func (r *Runner) Run(ctx context.Context) *types.Report {
	log := logger.OrNop(r.Logger).With(logger.String("rule_set", r.RuleSet.Name))
	report := types.NewReport(r.RuleSet.Name, r.RuleSet.Version, r.Source.Endpoint())
	defer report.Finish()
	r.setProgress(0)
	if b, ok := r.PostProcessor.(RunStarter); ok {
		b.Start(report)
	}

	if ok, err := r.Sink.Prepare(ctx, r.RuleSet); err != nil || !ok {
		reason := "sink declined"
		if err != nil {
			reason = err.Error()
		}
		report.Error("Preparing sink for rule set %s failed: %s", r.RuleSet.Name, reason)
		log.Error("Sink preparation failed", logger.String("reason", reason))
		return report
	}

	total, err := r.Source.RecordCount(ctx)
	if err != nil {
		report.Error("Reading record count from %s failed: %v", r.Source.Endpoint(), err)
		log.Error("Record count failed", logger.Error(err))
		return report
	}
	report.SourceTotal = total

	bulk := r.Options.BulkSize
	if bulk <= 0 {
		bulk = types.DefaultBulkSize
	}
	start := int64(max(r.Options.StartOffset, 0))
	upper := total
	if r.Options.RecordsLimit > 0 {
		upper = min(start+int64(r.Options.RecordsLimit), total)
	}
	limit := int64(r.Options.RecordsLimit)
	if limit <= 0 {
		limit = upper - start
	}

	log.Info("Starting harvest",
		logger.String("run_id", report.RunID),
		logger.String("endpoint", report.Endpoint),
		logger.Int64("total", total),
		logger.Int64("start", start),
		logger.Int64("upper_bound", upper),
		logger.Int("bulk_size", bulk),
	)

	var timings Timings
	// The cursor advances by the bulk size even when a page returns fewer
	// records than requested.
	for pageStart := start; pageStart <= upper; pageStart += int64(bulk) {
		if err := ctx.Err(); err != nil {
			report.Warn("Harvest cancelled at offset %d: %v", pageStart, err)
			log.Warn("Harvest cancelled", logger.Int64("offset", pageStart), logger.Error(err))
			break
		}
		size := min(upper-pageStart, int64(bulk))
		if size <= 0 {
			break
		}

		page := r.runPage(ctx, log, int(pageStart), int(size), &timings)
		report.Merge(page)
		timings.Pages++

		pct := 100.0
		if limit > 0 {
			pct = math.Min(100, float64(timings.Pages*bulk)/float64(limit)*100)
		}
		r.setProgress(pct)
		r.Metrics.progress(pct)
		log.Info("Page complete",
			logger.Int64("offset", pageStart),
			logger.Float64("progress_pct", pct),
			logger.Int("stored", report.SuccessCount()),
			logger.Int("failed", report.FailedCount()),
			logger.Duration("fetch_total", timings.Fetch),
			logger.Duration("fetch_avg", timings.Average(timings.Fetch)),
			logger.Duration("map_total", timings.Map),
			logger.Duration("map_avg", timings.Average(timings.Map)),
			logger.Duration("store_total", timings.Store),
			logger.Duration("store_avg", timings.Average(timings.Store)),
		)
	}

	log.Info("Harvest complete",
		logger.String("run_id", report.RunID),
		logger.Int("pages", timings.Pages),
		logger.Int("identified", report.TotalIdentified),
		logger.Int("stored", report.SuccessCount()),
		logger.Int("failed", report.FailedCount()),
		logger.Duration("fetch_total", timings.Fetch),
		logger.Duration("validate_total", timings.Validate),
		logger.Duration("map_total", timings.Map),
		logger.Duration("store_total", timings.Store),
	)
	return report
}

// runPage processes one page into a page report. Panics are recovered
// here so one page cannot end the run.
func (r *Runner) runPage(ctx context.Context, log logger.Logger, start, size int, t *Timings) (page *types.Report) {
	page = types.NewPageReport()
	ok := true
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			page.Error("Unexpected failure processing records %d-%d: %v", start, start+size-1, rec)
			log.Error("Page failed", logger.Int("offset", start), logger.Any("panic", rec))
		}
		r.Metrics.page(r.RuleSet.Name, ok)
	}()

	began := time.Now()
	records, err := r.Source.RecordsRange(ctx, start, size, page)
	r.phase(PhaseFetch, began, &t.Fetch)
	if err != nil {
		ok = false
		page.Error("Fetching records %d-%d from %s failed: %v", start, start+size-1, r.Source.Endpoint(), err)
		log.Error("Page fetch failed", logger.Int("offset", start), logger.Error(err))
		return page
	}

	began = time.Now()
	records = r.validate(records, page)
	r.phase(PhaseValidate, began, &t.Validate)

	began = time.Now()
	docs := r.mapRecords(records, page)
	r.phase(PhaseMap, began, &t.Map)

	if r.PostProcessor != nil {
		for i := range docs {
			docs[i] = r.PostProcessor.Process(docs[i])
		}
	}

	began = time.Now()
	r.store(ctx, docs, page)
	r.phase(PhaseStore, began, &t.Store)
	return page
}

func (r *Runner) phase(name string, began time.Time, total *time.Duration) {
	d := time.Since(began)
	*total += d
	r.Metrics.observe(r.RuleSet.Name, name, d)
}

// validate drops records with fatal violations.
func (r *Runner) validate(records []types.SourceRecord, page *types.Report) []types.SourceRecord {
	if len(r.Validators) == 0 {
		return records
	}
	kept := make([]types.SourceRecord, 0, len(records))
	for _, rec := range records {
		matched, dropped := false, false
		for _, v := range r.Validators {
			if !v.MatchesNamespace(rec.Namespace) {
				continue
			}
			matched = true
			findings, err := v.Validate(rec.Root)
			for _, f := range findings {
				page.Info("Validator %s on record %s: %s", v.Name(), rec.Origin, f)
			}
			if err != nil {
				page.Error("Record %s rejected by validator %s: %v", rec.Origin, v.Name(), err)
				dropped = true
				break
			}
		}
		if !matched {
			page.Info("No validator for namespace %q of record %s", rec.Namespace, rec.Origin)
		}
		if dropped {
			r.Metrics.record(r.RuleSet.Name, OutcomeInvalid, 1)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func (r *Runner) mapRecords(records []types.SourceRecord, page *types.Report) []types.Document {
	docs := make([]types.Document, 0, len(records))
	skipped := 0
	for _, rec := range records {
		doc, ok, err := r.Mapper.Map(rec)
		if doc.ID != "" {
			page.Identified()
		}
		if err != nil {
			id := doc.ID
			var merr *mapper.MappingError
			if errors.As(err, &merr) && merr.RecordID != "" {
				id = merr.RecordID
			}
			if id == "" {
				id = rec.Origin
			}
			page.Fail(id, err.Error())
			r.Metrics.record(r.RuleSet.Name, OutcomeFailed, 1)
			continue
		}
		if !ok {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	r.Metrics.record(r.RuleSet.Name, OutcomeSkipped, skipped)
	return docs
}

// store writes docs to the sink, one failure per document at most.
func (r *Runner) store(ctx context.Context, docs []types.Document, page *types.Report) {
	if len(docs) == 0 {
		return
	}
	if r.Options.BulkStore {
		ok, err := r.Sink.StoreAll(ctx, docs)
		if err == nil && ok {
			for _, doc := range docs {
				page.Success(doc.ID)
			}
			r.Metrics.record(r.RuleSet.Name, OutcomeStored, len(docs))
			return
		}
		page.Warn("Bulk store of %d documents failed, storing individually: %s", len(docs), reason(err))
	}

	for _, doc := range docs {
		ok, err := r.Sink.Store(ctx, doc)
		if err != nil || !ok {
			page.Fail(doc.ID, fmt.Sprintf("store failed: %s", reason(err)))
			r.Metrics.record(r.RuleSet.Name, OutcomeFailed, 1)
			continue
		}
		page.Success(doc.ID)
		r.Metrics.record(r.RuleSet.Name, OutcomeStored, 1)
	}
}

func reason(err error) string {
	if err != nil {
		return err.Error()
	}
	return "sink declined"
}
