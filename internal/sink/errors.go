// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	// ErrNotPrepared is returned by Store and StoreAll before a successful Prepare.
	ErrNotPrepared = errors.New("sink not prepared")

	// ErrIndexMissing is returned by Prepare when the index does not exist
	// and the rule set does not allow creating it.
	ErrIndexMissing = errors.New("index does not exist and creation is disabled")

	// ErrBulkRejected is returned by StoreAll when the cluster rejects
	// some of the documents in a bulk request.
	ErrBulkRejected = errors.New("bulk request rejected documents")
)

// Error describes a failed operation against the search index.
type Error struct {
	Op     string
	Index  string
	Status int
	Type   string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("elasticsearch %s %s", e.Op, e.Index)
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	}
	if e.Type != "" {
		msg += ": " + e.Type
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// errorBody is the error envelope of an Elasticsearch response. The error
// member is an object for most APIs and a bare string for some.
type errorBody struct {
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

type errorCause struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// responseError builds an *Error from a non-2xx response.
func responseError(op, index string, res *esapi.Response) *Error {
	e := &Error{Op: op, Index: index, Status: res.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Error) == 0 {
		e.Reason = string(data)
		return e
	}
	var cause errorCause
	if err := json.Unmarshal(body.Error, &cause); err == nil {
		e.Type, e.Reason = cause.Type, cause.Reason
		return e
	}
	var text string
	if err := json.Unmarshal(body.Error, &text); err == nil {
		e.Reason = text
	}
	return e
}
