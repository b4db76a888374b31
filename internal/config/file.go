// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

// FileConfig mirrors the YAML file. Zero values mean "not set" and keep the default.
type FileConfig struct {
	LogLevel   string `yaml:"logLevel,omitempty"`
	LogService string `yaml:"logService,omitempty"`

	Source    *SourceFile    `yaml:"source,omitempty"`
	Auth      *AuthFile      `yaml:"auth,omitempty"`
	Download  *DownloadFile  `yaml:"download,omitempty"`
	Viewer    *ProgramFile   `yaml:"viewer,omitempty"`
	Player    *PlayerFile    `yaml:"player,omitempty"`
	Playback  *PlaybackFile  `yaml:"playback,omitempty"`
	Transcode *TranscodeFile `yaml:"transcode,omitempty"`
	Cleanup   *CleanupFile   `yaml:"cleanup,omitempty"`
	Status    *StatusFile    `yaml:"status,omitempty"`
	Metrics   *MetricsFile   `yaml:"metrics,omitempty"`
	Tracing   *TracingFile   `yaml:"tracing,omitempty"`
}

type SourceFile struct {
	Kind         string   `yaml:"kind,omitempty"`
	FolderID     string   `yaml:"folderId,omitempty"`
	LocalFolder  string   `yaml:"localFolder,omitempty"`
	Media        string   `yaml:"media,omitempty"`
	MimeTypes    []string `yaml:"mimeTypes,omitempty"`
	PageSize     int      `yaml:"pageSize,omitempty"`
	AwaitTimeout string   `yaml:"awaitTimeout,omitempty"`
}

type AuthFile struct {
	Mode            string `yaml:"mode,omitempty"`
	CredentialsFile string `yaml:"credentialsFile,omitempty"`
	TokenFile       string `yaml:"tokenFile,omitempty"`
}

type DownloadFile struct {
	Dir       string `yaml:"dir,omitempty"`
	ChunkSize int    `yaml:"chunkSize,omitempty"`
}

type ProgramFile struct {
	Bin  string   `yaml:"bin,omitempty"`
	Args []string `yaml:"args,omitempty"`
}

type PlayerFile struct {
	Bin           string   `yaml:"bin,omitempty"`
	Args          []string `yaml:"args,omitempty"`
	FallbackShell string   `yaml:"fallbackShell,omitempty"`
	Display       string   `yaml:"display,omitempty"`
	StartupProbe  string   `yaml:"startupProbe,omitempty"`
}

type PlaybackFile struct {
	RunDuration  string `yaml:"runDuration,omitempty"`
	PollInterval string `yaml:"pollInterval,omitempty"`
	StopGrace    string `yaml:"stopGrace,omitempty"`
	KillWait     string `yaml:"killWait,omitempty"`
}

type TranscodeFile struct {
	FFmpegBin        string `yaml:"ffmpegBin,omitempty"`
	FFprobeBin       string `yaml:"ffprobeBin,omitempty"`
	Timeout          string `yaml:"timeout,omitempty"`
	PreferredCodec   string `yaml:"preferredCodec,omitempty"`
	ProgressInterval string `yaml:"progressInterval,omitempty"`
	StallTimeout     string `yaml:"stallTimeout,omitempty"`
}

type CleanupFile struct {
	TolerateMissing *bool `yaml:"tolerateMissing,omitempty"`
}

type StatusFile struct {
	Listen    string `yaml:"listen,omitempty"`
	RateLimit int    `yaml:"rateLimit,omitempty"`
	Token     string `yaml:"token,omitempty"`
}

type MetricsFile struct {
	Textfile string `yaml:"textfile,omitempty"`
}

type TracingFile struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
