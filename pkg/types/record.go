// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"

	"github.com/antchfx/xmlquery"
)

// SourceRecord is one raw metadata record fetched from a source.
type SourceRecord struct {
	// Origin identifies where the record came from (file path or catalog position).
	Origin string

	// Namespace is the namespace URI of the record's root element.
	Namespace string

	// Root is the parsed document node of the record.
	Root *xmlquery.Node
}

// NewSourceRecord wraps a parsed document and records its root namespace.
func NewSourceRecord(origin string, doc *xmlquery.Node) SourceRecord {
	rec := SourceRecord{Origin: origin, Root: doc}
	if el := RootElement(doc); el != nil {
		rec.Namespace = el.NamespaceURI
	}
	return rec
}

// RootElement returns the first element child of a document node, or n
// itself when n is already an element.
func RootElement(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	if n.Type == xmlquery.ElementNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// Document is a mapped record ready to be stored in the search index.
type Document struct {
	// ID is the record identifier extracted by the identifier rule.
	ID string

	// Body holds the mapped fields in output order.
	Body *OrderedMap
}

// MarshalJSON encodes the document body.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Body == nil {
		return json.Marshal(map[string]any{})
	}
	return d.Body.MarshalJSON()
}
