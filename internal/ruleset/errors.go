// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ruleset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDocument     = errors.New("invalid rule document")
	ErrNoIdentifier        = errors.New("no identifier field")
	ErrMultipleIdentifiers = errors.New("more than one identifier field")
	ErrNestedIdentifier    = errors.New("identifier field must be top-level")
	ErrMultipleLocations   = errors.New("more than one location field")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrInvalidExpression   = errors.New("invalid expression")
	ErrInvalidSuggest      = errors.New("invalid suggest descriptor")
	ErrInvalidOutput       = errors.New("invalid output properties")
)

// ConfigError reports a rule set that cannot be loaded. Fields names the
// offending field paths, when the problem is tied to specific fields.
type ConfigError struct {
	RuleSet string
	Fields  []string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("rule set")
	if e.RuleSet != "" {
		fmt.Fprintf(&b, " %q", e.RuleSet)
	}
	if len(e.Fields) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Fields, ", "))
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }
