// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/ManuGH/kiosk/internal/media"
)

// Attribute keys used on kiosk spans.
const (
	RunIDKey      = "kiosk.run_id"
	RunOutcomeKey = "kiosk.outcome"

	FileIDKey       = "file.id"
	FileNameKey     = "file.name"
	FileMimeTypeKey = "file.mime_type"
	FileCategoryKey = "file.category"
	FileSizeKey     = "file.size"

	PlayerReasonKey    = "player.reason"
	PlayerMechanismKey = "player.mechanism"
	PlayerPIDKey       = "player.pid"
)

// FileAttributes describes the located file.
func FileAttributes(d media.FileDescriptor) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(FileIDKey, d.ID),
		attribute.String(FileNameKey, d.Name),
		attribute.String(FileMimeTypeKey, d.MimeType),
		attribute.String(FileCategoryKey, d.Category().String()),
	}
	if d.Size > 0 {
		attrs = append(attrs, attribute.Int64(FileSizeKey, d.Size))
	}
	return attrs
}

// PlaybackAttributes describes how a session ended.
func PlaybackAttributes(reason, mechanism string, pid int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if reason != "" {
		attrs = append(attrs, attribute.String(PlayerReasonKey, reason))
	}
	if mechanism != "" {
		attrs = append(attrs, attribute.String(PlayerMechanismKey, mechanism))
	}
	if pid > 0 {
		attrs = append(attrs, attribute.Int(PlayerPIDKey, pid))
	}
	return attrs
}
