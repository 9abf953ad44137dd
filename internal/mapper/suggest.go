// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import (
	"strings"

	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

// Suggestions builds autocomplete entries from already-mapped scalar fields.
// Each entry is {"inputs": [...], "weight": n, "output": value}. The shape
// follows the descriptor: a single configured source yields an object, several
// yield a list of the entries that have inputs, so the field keeps one shape
// across records. The boolean is false when no source field yields any input.
func Suggestions(s *ruleset.Suggest, fields *types.OrderedMap) (types.Value, bool) {
	if s == nil {
		return types.Value{}, false
	}
	var entries []types.Value
	for _, src := range s.Sources {
		v, ok := fields.Get(src.Field)
		if !ok {
			continue
		}
		output, ok := v.Str()
		if !ok {
			continue
		}
		inputs := suggestInputs(s, src, output)
		if len(inputs) == 0 {
			continue
		}
		entry := types.NewOrderedMap()
		entry.Set("inputs", types.StringsValue(inputs))
		entry.Set("weight", types.NumberValue(float64(src.Weight)))
		entry.Set("output", types.StringValue(output))
		entries = append(entries, types.MapValue(entry))
	}
	if len(entries) == 0 {
		return types.Value{}, false
	}
	if len(s.Sources) == 1 {
		return entries[0], true
	}
	return types.ListValue(entries...), true
}

func suggestInputs(s *ruleset.Suggest, src ruleset.SuggestSource, value string) []string {
	sep := src.Separator
	if sep == "" {
		sep = s.Separator
	}
	var tokens []string
	if sep == "" {
		tokens = []string{value}
	} else {
		tokens = strings.Split(value, sep)
	}

	var inputs []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" || excluded(s, tok) {
			continue
		}
		for _, r := range s.Remove {
			if r != "" {
				tok = strings.ReplaceAll(tok, r, "")
			}
		}
		if tok = strings.TrimSpace(tok); tok != "" {
			inputs = append(inputs, tok)
		}
	}
	return inputs
}

func excluded(s *ruleset.Suggest, token string) bool {
	for _, re := range s.Exclude {
		if re.MatchString(token) {
			return true
		}
	}
	return false
}
