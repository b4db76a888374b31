// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID  = "run_id"
	FieldFileID = "file_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldPID       = "pid"
	FieldOutcome   = "outcome"

	// Media fields
	FieldFileName = "file_name"
	FieldMimeType = "mime_type"
	FieldCategory = "category"
	FieldCodec    = "codec"

	// Path fields
	FieldPath      = "path"
	FieldFinalPath = "final_path"
	FieldBinary    = "binary"
)
