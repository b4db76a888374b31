// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config provides configuration management for the kiosk.
// Precedence is ENV > YAML file > defaults.
package config

import (
	"time"

	"github.com/ManuGH/kiosk/internal/media"
)

// Source kinds.
const (
	SourceDrive = "drive"
	SourceLocal = "local"
)

// Media selections.
const (
	MediaPresentation = "presentation"
	MediaVideo        = "video"
	MediaAll          = "all"
)

// Auth modes.
const (
	AuthServiceAccount = "service_account"
	AuthOAuth          = "oauth"
	AuthADC            = "adc"
	// AuthBrowser is the scripted browser login of early revisions. It is
	// accepted by the parser so that the error message can point at the
	// supported modes.
	AuthBrowser = "browser"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string
	LogLevel   string
	LogService string

	Source    SourceConfig
	Auth      AuthConfig
	Download  DownloadConfig
	Viewer    ViewerConfig
	Player    PlayerConfig
	Playback  PlaybackConfig
	Transcode TranscodeConfig
	Cleanup   CleanupConfig
	Status    StatusConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// SourceConfig selects where files are located.
type SourceConfig struct {
	Kind         string
	FolderID     string
	LocalFolder  string
	Media        string
	MimeTypes    []string
	PageSize     int
	AwaitTimeout time.Duration
}

// AuthConfig describes how the cloud storage credential is obtained.
type AuthConfig struct {
	Mode            string
	CredentialsFile string
	TokenFile       string
}

// DownloadConfig controls the local copy.
type DownloadConfig struct {
	Dir       string
	ChunkSize int
}

// ViewerConfig is the document viewer used for presentations.
type ViewerConfig struct {
	Bin  string
	Args []string
}

// PlayerConfig is the video player.
type PlayerConfig struct {
	Bin  string
	Args []string
	// FallbackShell starts the player through "<shell> -c" with DISPLAY set
	// when the primary launch dies immediately.
	FallbackShell string
	Display       string
	StartupProbe  time.Duration
}

// PlaybackConfig holds the timing shared by both player variants.
type PlaybackConfig struct {
	RunDuration  time.Duration
	PollInterval time.Duration
	StopGrace    time.Duration
	KillWait     time.Duration
}

// TranscodeConfig controls the optional conversion step for videos.
type TranscodeConfig struct {
	FFmpegBin        string
	FFprobeBin       string
	Timeout          time.Duration
	PreferredCodec   string
	ProgressInterval time.Duration
	StallTimeout     time.Duration
}

// CleanupConfig controls removal of the local copy.
type CleanupConfig struct {
	TolerateMissing bool
}

// StatusConfig controls the optional HTTP status listener.
type StatusConfig struct {
	Listen    string
	RateLimit int
	// Token, when set, is required as a bearer token on /status.
	Token     string
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Textfile string
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
}

// MimeTypesFor returns the MIME types matching a media selection.
func MimeTypesFor(selection string) []string {
	switch selection {
	case MediaVideo:
		return media.VideoTypes()
	case MediaAll:
		return append(media.PresentationTypes(), media.VideoTypes()...)
	default:
		return media.PresentationTypes()
	}
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "kiosk",
		Source: SourceConfig{
			Kind:     SourceDrive,
			Media:    MediaPresentation,
			PageSize: 10,
		},
		Auth: AuthConfig{
			Mode:            AuthServiceAccount,
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
		},
		Download: DownloadConfig{
			Dir:       "/tmp/kiosk",
			ChunkSize: 8 << 20,
		},
		Viewer: ViewerConfig{
			Bin:  "libreoffice",
			Args: []string{"--norestore", "--show"},
		},
		Player: PlayerConfig{
			Bin:           "cvlc",
			Args:          []string{"--fullscreen", "--loop", "--no-osd", "--no-video-title-show"},
			FallbackShell: "/bin/sh",
			Display:       ":0",
			StartupProbe:  5 * time.Second,
		},
		Playback: PlaybackConfig{
			RunDuration:  48 * time.Hour,
			PollInterval: time.Minute,
			StopGrace:    10 * time.Second,
			KillWait:     5 * time.Second,
		},
		Transcode: TranscodeConfig{
			FFmpegBin:        "ffmpeg",
			FFprobeBin:       "ffprobe",
			Timeout:          300 * time.Second,
			PreferredCodec:   "h264",
			ProgressInterval: 10 * time.Second,
			StallTimeout:     60 * time.Second,
		},
		Status: StatusConfig{
			RateLimit: 60,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			SamplingRate: 1.0,
		},
	}
}
