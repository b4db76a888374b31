// SPDX-License-Identifier: MIT

// Package locator finds the most recently modified media file in a folder.
package locator

import (
	"context"
	"errors"
	"iter"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/kiosk/internal/log"
	"github.com/ManuGH/kiosk/internal/media"
)

var (
	// ErrNoFile means the folder holds no file matching the query.
	ErrNoFile = errors.New("no matching file found")
	// ErrUnavailable classifies listing failures (transport, authorization).
	// Errors carrying it also match ErrNoFile so callers can treat both as "nothing to play".
	ErrUnavailable = errors.New("file source unavailable")
)

// SourceError wraps a listing failure.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return "file source unavailable: " + e.Err.Error()
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrNoFile, ErrUnavailable, e.Err}
}

// Query selects files inside a folder.
type Query struct {
	FolderID  string
	MimeTypes []string
	PageSize  int
}

// Page is one response of a paginated listing.
// An empty NextPageToken marks the last page.
type Page struct {
	Files         []media.FileDescriptor
	NextPageToken string
}

// Lister returns one page of files ordered by modification time, newest first.
type Lister interface {
	ListPage(ctx context.Context, q Query, pageToken string) (Page, error)
}

// Locator walks a Lister page by page.
type Locator struct {
	lister Lister
	query  Query
	logger zerolog.Logger
}

// New creates a Locator for the given query.
func New(lister Lister, q Query) *Locator {
	return &Locator{
		lister: lister,
		query:  q,
		logger: xglog.WithComponent("locator"),
	}
}

// Files yields matching descriptors newest first. Pages are requested only as
// the caller consumes items, and every call starts again from the first page.
// A listing error is yielded once and ends the sequence.
func (l *Locator) Files(ctx context.Context) iter.Seq2[media.FileDescriptor, error] {
	return func(yield func(media.FileDescriptor, error) bool) {
		token := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(media.FileDescriptor{}, err)
				return
			}
			page, err := l.lister.ListPage(ctx, l.query, token)
			if err != nil {
				yield(media.FileDescriptor{}, err)
				return
			}
			if len(page.Files) == 0 {
				return
			}
			for _, f := range page.Files {
				if !yield(f, nil) {
					return
				}
			}
			if page.NextPageToken == "" {
				return
			}
			token = page.NextPageToken
		}
	}
}

// Latest returns the most recently modified matching file.
// It returns ErrNoFile for an empty folder and a *SourceError when listing failed;
// the failure is logged here.
func (l *Locator) Latest(ctx context.Context) (media.FileDescriptor, error) {
	logger := xglog.WithContext(ctx, l.logger)
	for f, err := range l.Files(ctx) {
		if err != nil {
			logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "locate.failed").
				Str("folder_id", l.query.FolderID).
				Msg("listing folder failed")
			return media.FileDescriptor{}, &SourceError{Err: err}
		}
		logger.Info().
			Str(xglog.FieldEvent, "locate.found").
			Str(xglog.FieldFileID, f.ID).
			Str(xglog.FieldFileName, f.Name).
			Str(xglog.FieldMimeType, f.MimeType).
			Time("modified_time", f.ModifiedTime).
			Msg("latest file located")
		return f, nil
	}
	logger.Info().
		Str(xglog.FieldEvent, "locate.empty").
		Str("folder_id", l.query.FolderID).
		Msg("no matching file in folder")
	return media.FileDescriptor{}, ErrNoFile
}
