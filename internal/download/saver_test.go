package download

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-exporter/internal/export"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFileSaver_Save(t *testing.T) {
	dir := t.TempDir()
	saver := NewFileSaver(dir, nil)
	data := []byte("PK\x03\x04archive-bytes")

	path, err := saver.Save(context.Background(), "session_abc123.zip", data)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "session_abc123.zip"), path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, []string{"session_abc123.zip"}, listDir(t, dir), "temp file must be released")
}

func TestFileSaver_Save_EmptyPayload(t *testing.T) {
	dir := t.TempDir()

	path, err := NewFileSaver(dir, nil).Save(context.Background(), "session_a.zip", nil)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestFileSaver_Save_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	saver := NewFileSaver(dir, nil)

	_, err := saver.Save(context.Background(), "session_a.zip", []byte("old"))
	require.NoError(t, err)
	path, err := saver.Save(context.Background(), "session_a.zip", []byte("new"))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.Len(t, listDir(t, dir), 1)
}

func TestFileSaver_Save_StaysInsideDir(t *testing.T) {
	dir := t.TempDir()

	path, err := NewFileSaver(dir, nil).Save(context.Background(), export.ArchiveFilename("../../evil"), []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, "session_.._.._evil.zip", filepath.Base(path))
	assert.False(t, strings.Contains(filepath.Base(path), "/"))
}

func TestFileSaver_Save_InvalidFilename(t *testing.T) {
	_, err := NewFileSaver(t.TempDir(), nil).Save(context.Background(), "..", []byte("x"))
	require.Error(t, err)
}

func TestFileSaver_Save_MissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := NewFileSaver(missing, nil).Save(context.Background(), "session_a.zip", []byte("x"))
	require.Error(t, err)
}

func TestFileSaver_Save_CancelledReleasesTemp(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSaver(dir, nil).Save(ctx, "session_a.zip", []byte("x"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, listDir(t, dir), "temp reference must be removed on failure")
}

func TestFileSaver_ImplementsSaver(t *testing.T) {
	var _ export.Saver = (*FileSaver)(nil)
}
