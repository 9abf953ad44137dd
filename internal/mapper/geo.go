// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import (
	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/internal/ruleset"
	"github.com/pdiddy/harvester/pkg/types"
)

// Geo assembles a geo shape from the first node selected by rule:
//
//	{"type": <coordinates type>, "coordinates": [[lon, lat], ...]}
//
// Pairs whose latitude or longitude is not numeric are dropped. The field is
// omitted with a warning when no node or no pair remains.
func (e *Evaluator) Geo(rule *ruleset.FieldRule, node *xmlquery.Node) (EvalResult, bool, error) {
	pass, err := e.guard(rule, node)
	if err != nil || !pass {
		return EvalResult{}, false, err
	}

	anchor, err := rule.Selection.First(node)
	if err != nil {
		return EvalResult{}, false, err
	}
	if anchor == nil {
		e.log.Warn("No coordinate node selected", logger.String("field", rule.Path))
		return EvalResult{}, false, nil
	}
	if rule.CoordinatesType == "" {
		e.log.Warn("No coordinates type", logger.String("field", rule.Path))
		return EvalResult{}, false, nil
	}

	var coords []types.Value
	for i, pair := range rule.Coordinates {
		lat, latOK, latErr := pair.Lat.Number(anchor)
		lon, lonOK, lonErr := pair.Lon.Number(anchor)
		if latErr != nil || lonErr != nil || !latOK || !lonOK {
			e.log.Debug("Dropping coordinate pair",
				logger.String("field", rule.Path),
				logger.Int("pair", i),
			)
			continue
		}
		coords = append(coords, types.ListValue(types.NumberValue(lon), types.NumberValue(lat)))
	}
	if len(coords) == 0 {
		e.log.Warn("No valid coordinate pairs", logger.String("field", rule.Path))
		return EvalResult{}, false, nil
	}

	shape := types.NewOrderedMap()
	shape.Set("type", types.StringValue(rule.CoordinatesType))
	shape.Set("coordinates", types.ListValue(coords...))
	return EvalResult{Name: rule.Name, Value: types.MapValue(shape)}, true, nil
}
