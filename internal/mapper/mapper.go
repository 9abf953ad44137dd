// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mapper turns source records into index documents by applying the
// rules of a RuleSet: identifier extraction, plain and nested fields, geo
// shapes, raw XML fields, and suggestion entries.
package mapper

import (
	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

// Mapper maps records for one RuleSet.
type Mapper struct {
	rs     *ruleset.RuleSet
	eval   *Evaluator
	filter Filter
	log    logger.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithFilter installs a record-level filter applied after plain fields are
// evaluated.
func WithFilter(f Filter) Option {
	return func(m *Mapper) {
		if f != nil {
			m.filter = f
		}
	}
}

// WithLogger sets the logger used for mapping warnings.
func WithLogger(l logger.Logger) Option {
	return func(m *Mapper) { m.log = logger.OrNop(l) }
}

// New returns a mapper for rs.
func New(rs *ruleset.RuleSet, opts ...Option) *Mapper {
	m := &Mapper{rs: rs, filter: AcceptAll, log: logger.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	m.eval = NewEvaluator(rs, m.log.With(logger.String("rule_set", rs.Name)))
	return m
}

// RuleSet returns the rules the mapper applies.
func (m *Mapper) RuleSet() *ruleset.RuleSet { return m.rs }

// Map builds the index document for rec. The boolean is false when the
// record is skipped: it does not match the rule set, has no identifier, or
// is rejected by the filter. A skipped record whose identifier was extracted
// is returned with its ID set and no body. Errors are *MappingError.
func (m *Mapper) Map(rec types.SourceRecord) (types.Document, bool, error) {
	applies, err := m.rs.Applies(rec.Root)
	if err != nil {
		return types.Document{}, false, &MappingError{RecordID: rec.Origin, Err: err}
	}
	if !applies {
		m.log.Debug("Record not handled by rule set", logger.String("origin", rec.Origin))
		return types.Document{}, false, nil
	}

	id, ok, err := m.eval.Identifier(rec.Root)
	if err != nil {
		return types.Document{}, false, &MappingError{RecordID: rec.Origin, Field: m.rs.IdentifierField().Path, Err: err}
	}
	if !ok {
		m.log.Debug("Record has no identifier", logger.String("origin", rec.Origin))
		return types.Document{}, false, nil
	}

	body := types.NewOrderedMap()
	var deferred []*ruleset.FieldRule
	for _, rule := range m.rs.Fields() {
		if rule.IsGeo() || rule.RawXML {
			deferred = append(deferred, rule)
			continue
		}
		res, ok, err := m.eval.Evaluate(rule, rec.Root)
		if err != nil {
			return types.Document{ID: id}, false, &MappingError{RecordID: id, Field: rule.Path, Err: err}
		}
		if ok {
			body.Set(res.Name, res.Value)
		}
	}

	keep, err := m.filter.Accept(id, body)
	if err != nil {
		return types.Document{ID: id}, false, &MappingError{RecordID: id, Err: err}
	}
	if !keep {
		m.log.Debug("Record rejected by filter", logger.String("id", id))
		return types.Document{ID: id}, false, nil
	}

	for _, rule := range deferred {
		var (
			res EvalResult
			ok  bool
		)
		if rule.IsGeo() {
			res, ok, err = m.eval.Geo(rule, rec.Root)
		} else {
			res, ok, err = m.eval.Raw(rule, rec.Root)
		}
		if err != nil {
			return types.Document{ID: id}, false, &MappingError{RecordID: id, Field: rule.Path, Err: err}
		}
		if ok {
			body.Set(res.Name, res.Value)
		}
	}

	if s := m.rs.Suggest; s != nil {
		if v, ok := Suggestions(s, body); ok {
			body.Set(s.Field, v)
		}
	}
	return types.Document{ID: id, Body: body}, true, nil
}
