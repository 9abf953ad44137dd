// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source implements harvest sources: a local directory of XML
// files and an OGC Catalogue Service for the Web endpoint.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/antchfx/xmlquery"

	"github.com/pdiddy/harvester/internal/logger"
	"github.com/pdiddy/harvester/pkg/types"
)

// Directory reads one record per file from a local directory.
type Directory struct {
	dir     string
	pattern string
	log     logger.Logger
}

// NewDirectory returns a source over the files in dir matching pattern
// (default "*.xml").
func NewDirectory(dir, pattern string, log logger.Logger) *Directory {
	if pattern == "" {
		pattern = "*.xml"
	}
	return &Directory{dir: dir, pattern: pattern, log: logger.OrNop(log)}
}

// Endpoint returns the directory path.
func (d *Directory) Endpoint() string { return d.dir }

// files returns the matching regular files in lexical order.
func (d *Directory) files() ([]string, error) {
	info, err := os.Stat(d.dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", d.dir)
	}
	matches, err := filepath.Glob(filepath.Join(d.dir, d.pattern))
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", d.pattern, err)
	}
	files := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// RecordCount returns the number of matching files.
func (d *Directory) RecordCount(ctx context.Context) (int64, error) {
	files, err := d.files()
	if err != nil {
		return 0, err
	}
	return int64(len(files)), nil
}

// Records parses every matching file.
func (d *Directory) Records(ctx context.Context, report *types.Report) ([]types.SourceRecord, error) {
	files, err := d.files()
	if err != nil {
		return nil, err
	}
	return d.parseAll(ctx, files, report)
}

// RecordsRange parses up to max files starting at the zero-based position
// start. Files that do not parse are reported as ERROR messages and
// skipped.
func (d *Directory) RecordsRange(ctx context.Context, start, max int, report *types.Report) ([]types.SourceRecord, error) {
	files, err := d.files()
	if err != nil {
		return nil, err
	}
	if start < 0 || start >= len(files) || max <= 0 {
		return nil, nil
	}
	return d.parseAll(ctx, files[start:min(start+max, len(files))], report)
}

func (d *Directory) parseAll(ctx context.Context, files []string, report *types.Report) ([]types.SourceRecord, error) {
	records := make([]types.SourceRecord, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec, err := parseFile(path)
		if err != nil {
			report.Error("Reading record %s failed: %v", path, err)
			d.log.Warn("Skipping unreadable record", logger.String("path", path), logger.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseFile(path string) (types.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.SourceRecord{}, err
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return types.SourceRecord{}, fmt.Errorf("parsing XML: %w", err)
	}
	if types.RootElement(doc) == nil {
		return types.SourceRecord{}, fmt.Errorf("no root element")
	}
	return types.NewSourceRecord(path, doc), nil
}
