// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a report message.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Message is one timestamped diagnostic entry in a Report.
type Message struct {
	Time  time.Time `json:"time" yaml:"time"`
	Level Level     `json:"level" yaml:"level"`
	Text  string    `json:"text" yaml:"text"`
}

// Report accumulates the outcome of one harvest run. It is owned by the
// run and mutated only by the orchestrating goroutine.
type Report struct {
	RunID          string            `json:"run_id" yaml:"run_id"`
	RuleSet        string            `json:"rule_set" yaml:"rule_set"`
	RuleSetVersion string            `json:"rule_set_version" yaml:"rule_set_version"`
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`
	Started        time.Time         `json:"started" yaml:"started"`
	Finished       time.Time         `json:"finished,omitempty" yaml:"finished,omitempty"`
	Successful     []string          `json:"successful" yaml:"successful"`
	Failed         map[string]string `json:"failed" yaml:"failed"`
	Messages       []Message         `json:"messages" yaml:"messages"`

	// TotalIdentified counts records for which an identifier was extracted.
	TotalIdentified int `json:"total_identified" yaml:"total_identified"`

	// SourceTotal is the record count reported by the source.
	SourceTotal int64 `json:"source_total" yaml:"source_total"`

	now    func() time.Time
	stored map[string]struct{}
}

// NewReport returns an empty report with a fresh run id.
func NewReport(ruleSet, version, endpoint string) *Report {
	r := &Report{
		RunID:          uuid.NewString(),
		RuleSet:        ruleSet,
		RuleSetVersion: version,
		Endpoint:       endpoint,
		Failed:         make(map[string]string),
		now:            time.Now,
	}
	r.Started = r.clock()
	return r
}

// NewPageReport returns a scratch report for one page; it is merged into
// the run report with Merge.
func NewPageReport() *Report {
	return &Report{Failed: make(map[string]string), now: time.Now}
}

func (r *Report) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// storedSet returns the index of Successful, building it for reports that
// were decoded or filled in directly.
func (r *Report) storedSet() map[string]struct{} {
	if r.stored == nil || len(r.stored) != len(r.Successful) {
		r.stored = make(map[string]struct{}, len(r.Successful))
		for _, id := range r.Successful {
			r.stored[id] = struct{}{}
		}
	}
	return r.stored
}

// Success records id as stored. Successful is a set in first-stored order;
// the latest outcome for an id wins, so a stored id leaves Failed.
func (r *Report) Success(id string) {
	delete(r.Failed, id)
	set := r.storedSet()
	if _, ok := set[id]; ok {
		return
	}
	set[id] = struct{}{}
	r.Successful = append(r.Successful, id)
}

// Fail records id as failed with reason. A later failure for the same id
// overwrites the earlier reason and removes it from Successful.
func (r *Report) Fail(id, reason string) {
	if r.Failed == nil {
		r.Failed = make(map[string]string)
	}
	r.Failed[id] = reason
	set := r.storedSet()
	if _, ok := set[id]; !ok {
		return
	}
	delete(set, id)
	r.Successful = slices.DeleteFunc(r.Successful, func(s string) bool { return s == id })
}

// Identified increments the identified-record count.
func (r *Report) Identified() {
	r.TotalIdentified++
}

// Add appends a message at level.
func (r *Report) Add(level Level, format string, args ...any) {
	r.Messages = append(r.Messages, Message{
		Time:  r.clock(),
		Level: level,
		Text:  fmt.Sprintf(format, args...),
	})
}

// Info appends an INFO message.
func (r *Report) Info(format string, args ...any) { r.Add(LevelInfo, format, args...) }

// Warn appends a WARN message.
func (r *Report) Warn(format string, args ...any) { r.Add(LevelWarn, format, args...) }

// Error appends an ERROR message.
func (r *Report) Error(format string, args ...any) { r.Add(LevelError, format, args...) }

// Merge folds a page report into r, preserving message order.
func (r *Report) Merge(page *Report) {
	if page == nil {
		return
	}
	for _, id := range page.Successful {
		r.Success(id)
	}
	for _, id := range page.FailedIDs() {
		r.Fail(id, page.Failed[id])
	}
	r.Messages = append(r.Messages, page.Messages...)
	r.TotalIdentified += page.TotalIdentified
}

// Finish stamps the finish time.
func (r *Report) Finish() {
	r.Finished = r.clock()
}

// SuccessCount returns the number of stored records.
func (r *Report) SuccessCount() int { return len(r.Successful) }

// FailedCount returns the number of failed records.
func (r *Report) FailedCount() int { return len(r.Failed) }

// FailedIDs returns failed ids in sorted order.
func (r *Report) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MessagesAt returns the messages at level.
func (r *Report) MessagesAt(level Level) []Message {
	var out []Message
	for _, m := range r.Messages {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}
