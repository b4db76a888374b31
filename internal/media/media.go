// SPDX-License-Identifier: MIT

// Package media holds the descriptors passed between the kiosk pipeline stages.
package media

import (
	"path/filepath"
	"strings"
	"time"
)

// Category is the playback family of a file. It selects both the download
// strategy and the player variant.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryDocument
	CategoryVideo
)

func (c Category) String() string {
	switch c {
	case CategoryDocument:
		return "document"
	case CategoryVideo:
		return "video"
	default:
		return "unknown"
	}
}

// MIME types understood by the pipeline.
const (
	MimeGoogleSlides = "application/vnd.google-apps.presentation"
	MimePPTX         = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeODP          = "application/vnd.oasis.opendocument.presentation"
	MimePDF          = "application/pdf"

	MimeMP4       = "video/mp4"
	MimeQuickTime = "video/quicktime"
	MimeMatroska  = "video/x-matroska"
	MimeWebM      = "video/webm"
	MimeAVI       = "video/x-msvideo"
)

var (
	presentationTypes = []string{MimeGoogleSlides, MimePPTX, MimeODP, MimePDF}
	videoTypes        = []string{MimeMP4, MimeQuickTime, MimeMatroska, MimeWebM, MimeAVI}
)

// PresentationTypes returns the accepted presentation MIME types.
func PresentationTypes() []string {
	return append([]string(nil), presentationTypes...)
}

// VideoTypes returns the accepted video MIME types.
func VideoTypes() []string {
	return append([]string(nil), videoTypes...)
}

// CategoryOf maps a MIME type to its playback category.
func CategoryOf(mimeType string) Category {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if strings.HasPrefix(mt, "video/") {
		return CategoryVideo
	}
	for _, p := range presentationTypes {
		if mt == p {
			return CategoryDocument
		}
	}
	return CategoryUnknown
}

// FileDescriptor is the minimal remote metadata returned by a listing.
// ModifiedTime is zero when the source did not report it.
type FileDescriptor struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime time.Time
	Size         int64
}

// Category returns the playback category of the file.
func (d FileDescriptor) Category() Category {
	return CategoryOf(d.MimeType)
}

// LocalMediaFile is a downloaded copy of a remote file. ConvertedPath is set
// when the transcoder produced a derived file for playback.
type LocalMediaFile struct {
	Path          string
	Source        FileDescriptor
	ConvertedPath string
}

// PlaybackPath returns the file the player should open.
func (f LocalMediaFile) PlaybackPath() string {
	if f.ConvertedPath != "" {
		return f.ConvertedPath
	}
	return f.Path
}

// Strategy describes how the content of a file is retrieved.
type Strategy struct {
	// Export is true for server-side conversion of a native document.
	Export bool
	// ExportMime is the interchange format requested from the server.
	ExportMime string
	// Extension is appended to the local name when it lacks one.
	Extension string
}

// Direct is the raw byte copy strategy.
var Direct = Strategy{}

// StrategyFor picks the retrieval strategy from the file's media type.
// Only native Google Slides decks need an export; everything else is copied as is.
func StrategyFor(d FileDescriptor) Strategy {
	if d.MimeType == MimeGoogleSlides {
		return Strategy{Export: true, ExportMime: MimePPTX, Extension: ".pptx"}
	}
	return Direct
}

// LocalName returns the name the file is stored under for the given strategy.
func LocalName(d FileDescriptor, s Strategy) string {
	name := d.Name
	if s.Export && s.Extension != "" && !strings.EqualFold(filepath.Ext(name), s.Extension) {
		name += s.Extension
	}
	return name
}

// ConvertedName returns "<stem>_converted.mp4" for a source file name.
func ConvertedName(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return stem + "_converted.mp4"
}

var extensionTypes = map[string]string{
	".pptx": MimePPTX,
	".odp":  MimeODP,
	".pdf":  MimePDF,
	".mp4":  MimeMP4,
	".m4v":  MimeMP4,
	".mov":  MimeQuickTime,
	".mkv":  MimeMatroska,
	".webm": MimeWebM,
	".avi":  MimeAVI,
}

// TypeByExtension returns the MIME type for a local file name, or "" when the
// extension is not a supported media format.
func TypeByExtension(name string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(name))]
}
