// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/harvester/internal/source"
	"github.com/pdiddy/harvester/pkg/types"
)

func TestNewSource(t *testing.T) {
	dir := t.TempDir()

	src, err := newSource(types.SourceConfig{Kind: types.SourceDirectory, Dir: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &source.Directory{}, src)
	assert.Equal(t, dir, src.Endpoint())

	src, err = newSource(types.SourceConfig{Kind: types.SourceCSW, CSW: types.CSWConfig{URL: "https://catalog.example.org/csw"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &source.CSW{}, src)

	for _, cfg := range []types.SourceConfig{
		{Kind: types.SourceDirectory},
		{Kind: types.SourceCSW},
		{Kind: "ftp", Dir: dir},
	} {
		_, err := newSource(cfg, nil)
		assert.Error(t, err, "kind %q", cfg.Kind)
	}
}

func TestLoadValidators(t *testing.T) {
	files := []string{filepath.Join("..", "..", "validators", "iso19139.yaml")}

	vs, err := loadValidators(types.ValidationConfig{Enabled: false, Files: files})
	require.NoError(t, err)
	assert.Empty(t, vs)

	vs, err = loadValidators(types.ValidationConfig{Enabled: true, Files: files})
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "iso19139", vs[0].Name())

	_, err = loadValidators(types.ValidationConfig{Enabled: true, Files: []string{"missing.yaml"}})
	assert.Error(t, err)
}

func TestPrintReport(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &types.Report{
		RunID:           "0123456789",
		RuleSet:         "iso19139",
		RuleSetVersion:  "1.0",
		Endpoint:        "records",
		Started:         started,
		Finished:        started.Add(1500 * time.Millisecond),
		Successful:      []string{"a", "b"},
		Failed:          map[string]string{"c": "boom"},
		TotalIdentified: 3,
		SourceTotal:     4,
		Messages:        []types.Message{{Level: types.LevelError, Text: "x"}},
	}

	var buf bytes.Buffer
	printReport(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "Run 0123456789 (iso19139 1.0)")
	assert.Contains(t, out, "duration:    1.5s")
	assert.Contains(t, out, "stored:      2")
	assert.Contains(t, out, "failed:      1")
	assert.Contains(t, out, "errors:      1")
	assert.Equal(t, "01234567", shortID(r.RunID))
	assert.Equal(t, "abc", shortID("abc"))
}
