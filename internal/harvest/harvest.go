// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest drives a harvest run: pages of records are fetched from a
// Source, validated, mapped to documents, post-processed, and stored in a
// Sink. Failures are isolated at the run, page, and record level and every
// outcome is recorded in the run's Report.
package harvest

//go:generate mockgen -destination=mocks/mock_harvest.go -package=mocks github.com/pdiddy/harvester/internal/harvest Source,Sink,Validator

import (
	"context"
	"time"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

// Source fetches raw records from a catalog or directory.
type Source interface {
	// Endpoint describes where records come from.
	Endpoint() string
	// RecordCount returns the number of records available.
	RecordCount(ctx context.Context) (int64, error)
	// Records returns every record. Per-record problems are reported to
	// report; an error means the fetch as a whole failed.
	Records(ctx context.Context, report *types.Report) ([]types.SourceRecord, error)
	// RecordsRange returns up to max records starting at the zero-based
	// position start.
	RecordsRange(ctx context.Context, start, max int, report *types.Report) ([]types.SourceRecord, error)
}

// Sink stores documents in the search index. A false result without an
// error means the sink declined the operation.
type Sink interface {
	Prepare(ctx context.Context, rs *ruleset.RuleSet) (bool, error)
	Store(ctx context.Context, doc types.Document) (bool, error)
	StoreAll(ctx context.Context, docs []types.Document) (bool, error)
	Clear(ctx context.Context, rs *ruleset.RuleSet, clearMetadata bool) (bool, error)
}

// Validator checks records of one namespace. Validate returns advisory
// findings; a non-nil error is a fatal violation that drops the record.
type Validator interface {
	Name() string
	MatchesNamespace(uri string) bool
	Validate(node *xmlquery.Node) ([]string, error)
}

// Mapper turns a record into a document. See mapper.Mapper.
type Mapper interface {
	Map(rec types.SourceRecord) (types.Document, bool, error)
}

// PostProcessor transforms mapped documents before they are stored.
type PostProcessor interface {
	Process(doc types.Document) types.Document
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc func(doc types.Document) types.Document

// Process calls f.
func (f PostProcessorFunc) Process(doc types.Document) types.Document { return f(doc) }

// Identity returns documents unchanged.
var Identity PostProcessor = PostProcessorFunc(func(doc types.Document) types.Document { return doc })

// RunStarter is implemented by post-processors that need the run's
// identity before the first page is processed.
type RunStarter interface {
	Start(report *types.Report)
}

// StampProcessor adds harvest provenance fields to every document.
type StampProcessor struct {
	// Field names the object added to the document (default "harvest").
	Field          string
	RunID          string
	RuleSet        string
	RuleSetVersion string
	Endpoint       string

	now func() time.Time
}

// Start fills unset provenance fields from the run report.
func (p *StampProcessor) Start(report *types.Report) {
	if p.RunID == "" {
		p.RunID = report.RunID
	}
	if p.RuleSet == "" {
		p.RuleSet = report.RuleSet
	}
	if p.RuleSetVersion == "" {
		p.RuleSetVersion = report.RuleSetVersion
	}
	if p.Endpoint == "" {
		p.Endpoint = report.Endpoint
	}
}

// Process sets Field to {run_id, rule_set, rule_set_version, endpoint, harvested}.
func (p *StampProcessor) Process(doc types.Document) types.Document {
	if doc.Body == nil {
		doc.Body = types.NewOrderedMap()
	}
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	field := p.Field
	if field == "" {
		field = "harvest"
	}

	stamp := types.NewOrderedMap()
	if p.RunID != "" {
		stamp.Set("run_id", types.StringValue(p.RunID))
	}
	stamp.Set("rule_set", types.StringValue(p.RuleSet))
	if p.RuleSetVersion != "" {
		stamp.Set("rule_set_version", types.StringValue(p.RuleSetVersion))
	}
	if p.Endpoint != "" {
		stamp.Set("endpoint", types.StringValue(p.Endpoint))
	}
	stamp.Set("harvested", types.StringValue(now().UTC().Format(time.RFC3339)))
	doc.Body.Set(field, types.MapValue(stamp))
	return doc
}
