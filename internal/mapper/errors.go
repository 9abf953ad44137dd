// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mapper

import "fmt"

// MappingError reports a fault that prevented one record from being mapped.
// It is reserved for engine and configuration faults; ordinary absence of
// data never produces one.
type MappingError struct {
	// RecordID is the extracted identifier, or the record origin when the
	// identifier could not be evaluated.
	RecordID string
	// Field is the dotted path of the failing rule, if any.
	Field string
	Err   error
}

func (e *MappingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("mapping record %s: field %s: %v", e.RecordID, e.Field, e.Err)
	}
	return fmt.Sprintf("mapping record %s: %v", e.RecordID, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }
