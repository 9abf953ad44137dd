// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/harvester/pkg/types"
)

func writeRecords(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func origins(records []types.SourceRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = filepath.Base(r.Origin)
	}
	return out
}

func TestDirectoryRecordsRange(t *testing.T) {
	dir := writeRecords(t, map[string]string{
		"c.xml":     `<rec xmlns="urn:x"><id>c</id></rec>`,
		"a.xml":     `<rec xmlns="urn:x"><id>a</id></rec>`,
		"b.xml":     `<rec xmlns="urn:x"><id>b</id></rec>`,
		"notes.txt": `not a record`,
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.xml"), 0o755))
	src := NewDirectory(dir, "", nil)

	total, err := src.RecordCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, dir, src.Endpoint())

	report := types.NewPageReport()
	page, err := src.RecordsRange(context.Background(), 1, 5, report)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.xml", "c.xml"}, origins(page))
	assert.Equal(t, "urn:x", page[0].Namespace)
	assert.NotNil(t, page[0].Root)

	page, err = src.RecordsRange(context.Background(), 3, 5, report)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Empty(t, report.Messages)
}

func TestDirectoryReportsUnparseableFiles(t *testing.T) {
	dir := writeRecords(t, map[string]string{
		"a.xml": `<rec><id>a</id></rec>`,
		"b.xml": `<rec><id>b</rec>`,
		"c.xml": ``,
		"d.xml": `<rec><id>d</id></rec>`,
	})
	src := NewDirectory(dir, "*.xml", nil)

	report := types.NewPageReport()
	all, err := src.Records(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xml", "d.xml"}, origins(all))

	errs := report.MessagesAt(types.LevelError)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Text, "b.xml")
	assert.Contains(t, errs[1].Text, "c.xml")
}

func TestDirectoryMissing(t *testing.T) {
	src := NewDirectory(filepath.Join(t.TempDir(), "nope"), "", nil)
	_, err := src.RecordCount(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDirectoryCancelled(t *testing.T) {
	dir := writeRecords(t, map[string]string{"a.xml": `<rec/>`})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDirectory(dir, "", nil).RecordsRange(ctx, 0, 1, types.NewPageReport())
	assert.ErrorIs(t, err, context.Canceled)
}
