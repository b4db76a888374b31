// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package drive implements the file source on top of the Google Drive v3 API.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/locator"
	"github.com/ManuGH/kiosk/internal/media"
)

// ErrNotFound is returned by Open when the file vanished between listing and download.
var ErrNotFound = errors.New("drive: file not found")

const (
	orderBy         = "modifiedTime desc"
	defaultPageSize = 10
	maxPageSize     = 1000
)

var listFields = []googleapi.Field{
	"nextPageToken",
	"files(id,name,mimeType,modifiedTime,size)",
}

// Client lists and fetches files of a Drive folder. It satisfies
// locator.Lister and download.Fetcher.
type Client struct {
	svc    *drivev3.Service
	logger zerolog.Logger
}

// New creates a Client using an authenticated HTTP client.
// Extra options (e.g. an endpoint override) are passed to the API client.
func New(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &Client{svc: svc, logger: xglog.WithComponent("drive")}, nil
}

// BuildQuery renders the search expression for a folder listing.
func BuildQuery(q locator.Query) string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' in parents and trashed=false", escape(q.FolderID))
	if len(q.MimeTypes) > 0 {
		parts := make([]string, 0, len(q.MimeTypes))
		for _, mt := range q.MimeTypes {
			parts = append(parts, fmt.Sprintf("mimeType='%s'", escape(mt)))
		}
		b.WriteString(" and (")
		b.WriteString(strings.Join(parts, " or "))
		b.WriteString(")")
	}
	return b.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// ListPage returns one page of the folder, newest first.
func (c *Client) ListPage(ctx context.Context, q locator.Query, pageToken string) (locator.Page, error) {
	size := q.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	call := c.svc.Files.List().
		Q(BuildQuery(q)).
		OrderBy(orderBy).
		PageSize(int64(size)).
		Fields(listFields...).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return locator.Page{}, fmt.Errorf("drive: list files: %w", err)
	}

	page := locator.Page{
		Files:         make([]media.FileDescriptor, 0, len(resp.Files)),
		NextPageToken: resp.NextPageToken,
	}
	for _, f := range resp.Files {
		page.Files = append(page.Files, c.descriptor(ctx, f))
	}
	return page, nil
}

func (c *Client) descriptor(ctx context.Context, f *drivev3.File) media.FileDescriptor {
	d := media.FileDescriptor{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.Size,
	}
	if f.ModifiedTime != "" {
		t, err := time.Parse(time.RFC3339, f.ModifiedTime)
		if err != nil {
			logger := xglog.WithContext(ctx, c.logger)
			logger.Debug().
				Err(err).
				Str(xglog.FieldFileID, f.Id).
				Str("modified_time", f.ModifiedTime).
				Msg("unparseable modification time")
		} else {
			d.ModifiedTime = t
		}
	}
	return d
}

// Open starts the transfer of a file. The returned size is -1 when the
// server does not announce it (typical for exports).
func (c *Client) Open(ctx context.Context, d media.FileDescriptor, s media.Strategy) (io.ReadCloser, int64, error) {
	var (
		resp *http.Response
		err  error
	)
	if s.Export {
		resp, err = c.svc.Files.Export(d.ID, s.ExportMime).Context(ctx).Download()
	} else {
		resp, err = c.svc.Files.Get(d.ID).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, d.ID)
		}
		return nil, 0, fmt.Errorf("drive: open %s: %w", d.ID, err)
	}

	size := resp.ContentLength
	if size < 0 && !s.Export && d.Size > 0 {
		size = d.Size
	}
	return resp.Body, size, nil
}
