// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package localdir

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/kiosk/internal/locator"
	"github.com/ManuGH/kiosk/internal/media"
)

func writeAt(t *testing.T, dir, name, content string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestListPage_NewestFirstWithOffsets(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	writeAt(t, dir, "A.pptx", "a", base)
	writeAt(t, dir, "B.pptx", "b", base.Add(time.Hour))
	writeAt(t, dir, "C.pdf", "c", base.Add(2*time.Hour))
	writeAt(t, dir, "notes.txt", "x", base.Add(3*time.Hour))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pptx"), 0o750))

	d := New(dir)
	q := locator.Query{MimeTypes: media.PresentationTypes(), PageSize: 2}

	page, err := d.ListPage(context.Background(), q, "")
	require.NoError(t, err)
	require.Len(t, page.Files, 2)
	assert.Equal(t, "C.pdf", page.Files[0].Name)
	assert.Equal(t, "B.pptx", page.Files[1].Name)
	assert.Equal(t, "2", page.NextPageToken)

	page, err = d.ListPage(context.Background(), q, page.NextPageToken)
	require.NoError(t, err)
	require.Len(t, page.Files, 1)
	assert.Equal(t, "A.pptx", page.Files[0].Name)
	assert.Empty(t, page.NextPageToken)

	_, err = d.ListPage(context.Background(), q, "nope")
	assert.Error(t, err)
}

func TestListPage_MimeFilter(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeAt(t, dir, "deck.pptx", "a", now)
	writeAt(t, dir, "clip.mp4", "b", now.Add(-time.Minute))

	got, err := locator.New(New(dir), locator.Query{MimeTypes: media.VideoTypes()}).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", got.Name)
	assert.Equal(t, media.CategoryVideo, got.Category())
}

func TestListPage_EmptyAndMissingFolder(t *testing.T) {
	_, err := locator.New(New(t.TempDir()), locator.Query{}).Latest(context.Background())
	assert.ErrorIs(t, err, locator.ErrNoFile)
	assert.NotErrorIs(t, err, locator.ErrUnavailable)

	_, err = locator.New(New(filepath.Join(t.TempDir(), "missing")), locator.Query{}).Latest(context.Background())
	assert.ErrorIs(t, err, locator.ErrNoFile)
	assert.ErrorIs(t, err, locator.ErrUnavailable)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	writeAt(t, dir, "clip.mp4", "video-bytes", time.Now())
	d := New(dir)

	rc, size, err := d.Open(context.Background(), media.FileDescriptor{ID: "clip.mp4"}, media.Direct)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(body))
	assert.Equal(t, int64(len(body)), size)

	_, _, err = d.Open(context.Background(), media.FileDescriptor{ID: "../escape.mp4"}, media.Direct)
	assert.Error(t, err)

	_, _, err = d.Open(context.Background(), media.FileDescriptor{ID: "clip.mp4"}, media.Strategy{Export: true})
	assert.ErrorIs(t, err, ErrExportUnsupported)
}

func TestAwait_FileAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	writeAt(t, dir, "clip.mp4", "x", time.Now())

	err := New(dir).Await(context.Background(), media.VideoTypes(), time.Second)
	assert.NoError(t, err)
}

func TestAwait_FileAppears(t *testing.T) {
	dir := t.TempDir()
	d := New(dir)

	done := make(chan error, 1)
	go func() {
		done <- d.Await(context.Background(), media.VideoTypes(), 5*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	writeAt(t, dir, "ignored.txt", "x", time.Now())
	writeAt(t, dir, "clip.mp4", "x", time.Now())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Await did not return after the file appeared")
	}
}

func TestAwait_Timeout(t *testing.T) {
	dir := t.TempDir()
	writeAt(t, dir, "deck.pptx", "x", time.Now())

	err := New(dir).Await(context.Background(), media.VideoTypes(), 50*time.Millisecond)
	assert.ErrorIs(t, err, locator.ErrNoFile)
}

func TestAwait_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(t.TempDir()).Await(ctx, nil, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
