// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package localdir serves media from a directory on the kiosk itself, e.g. a
// mounted or synchronized share. It plugs into the same locator and download
// stages as the cloud source.
package localdir

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/ManuGH/kiosk/internal/fsutil"
	"github.com/ManuGH/kiosk/internal/locator"
	"github.com/ManuGH/kiosk/internal/media"
)

// ErrExportUnsupported is returned when a local file would need a server-side export.
var ErrExportUnsupported = errors.New("localdir: export strategy not supported")

// Dir is a local folder acting as file source.
type Dir struct {
	root string
}

// New returns a source rooted at dir.
func New(dir string) *Dir {
	return &Dir{root: dir}
}

// ListPage returns one page of matching files, newest first. Page tokens are
// offsets into the sorted listing.
func (d *Dir) ListPage(ctx context.Context, q locator.Query, pageToken string) (locator.Page, error) {
	if err := ctx.Err(); err != nil {
		return locator.Page{}, err
	}
	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 {
			return locator.Page{}, fmt.Errorf("localdir: invalid page token %q", pageToken)
		}
		offset = n
	}

	files, err := d.scan(q.MimeTypes)
	if err != nil {
		return locator.Page{}, err
	}
	if offset >= len(files) {
		return locator.Page{}, nil
	}

	size := q.PageSize
	if size <= 0 {
		size = len(files)
	}
	end := min(offset+size, len(files))
	page := locator.Page{Files: files[offset:end]}
	if end < len(files) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (d *Dir) scan(mimeTypes []string) ([]media.FileDescriptor, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("localdir: read %s: %w", d.root, err)
	}

	var files []media.FileDescriptor
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		mt := media.TypeByExtension(e.Name())
		if mt == "" || (len(mimeTypes) > 0 && !slices.Contains(mimeTypes, mt)) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, media.FileDescriptor{
			ID:           e.Name(),
			Name:         e.Name(),
			MimeType:     mt,
			ModifiedTime: info.ModTime(),
			Size:         info.Size(),
		})
	}

	slices.SortStableFunc(files, func(a, b media.FileDescriptor) int {
		return b.ModifiedTime.Compare(a.ModifiedTime)
	})
	return files, nil
}

// Open opens a listed file for copying.
func (d *Dir) Open(ctx context.Context, f media.FileDescriptor, s media.Strategy) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if s.Export {
		return nil, 0, fmt.Errorf("%w: %s", ErrExportUnsupported, f.Name)
	}
	path, err := fsutil.ConfineRelPath(d.root, f.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("localdir: %w", err)
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		return nil, 0, fmt.Errorf("localdir: %w", err)
	}
	// #nosec G304 -- path is confined to the configured folder
	fh, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("localdir: open %s: %w", f.ID, err)
	}
	info, err := fh.Stat()
	if err != nil {
		_ = fh.Close()
		return nil, 0, fmt.Errorf("localdir: stat %s: %w", f.ID, err)
	}
	return fh, info.Size(), nil
}
