// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseList(key, defaultVal)
}

func (l *Loader) envFields(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFields(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults
// and validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if len(cfg.Source.MimeTypes) == 0 {
		cfg.Source.MimeTypes = MimeTypesFor(cfg.Source.Media)
	}

	if abs, err := filepath.Abs(cfg.Download.Dir); err == nil {
		cfg.Download.Dir = abs
	}
	if cfg.Source.LocalFolder != "" {
		if abs, err := filepath.Abs(cfg.Source.LocalFolder); err == nil {
			cfg.Source.LocalFolder = abs
		}
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) error {
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogService, f.LogService)

	if s := f.Source; s != nil {
		setString(&cfg.Source.Kind, s.Kind)
		setString(&cfg.Source.FolderID, s.FolderID)
		setString(&cfg.Source.LocalFolder, s.LocalFolder)
		setString(&cfg.Source.Media, s.Media)
		if len(s.MimeTypes) > 0 {
			cfg.Source.MimeTypes = s.MimeTypes
		}
		setInt(&cfg.Source.PageSize, s.PageSize)
		if err := setDuration(&cfg.Source.AwaitTimeout, "source.awaitTimeout", s.AwaitTimeout); err != nil {
			return err
		}
	}

	if a := f.Auth; a != nil {
		setString(&cfg.Auth.Mode, a.Mode)
		setString(&cfg.Auth.CredentialsFile, a.CredentialsFile)
		setString(&cfg.Auth.TokenFile, a.TokenFile)
	}

	if d := f.Download; d != nil {
		setString(&cfg.Download.Dir, d.Dir)
		setInt(&cfg.Download.ChunkSize, d.ChunkSize)
	}

	if v := f.Viewer; v != nil {
		setString(&cfg.Viewer.Bin, v.Bin)
		if v.Args != nil {
			cfg.Viewer.Args = v.Args
		}
	}

	if p := f.Player; p != nil {
		setString(&cfg.Player.Bin, p.Bin)
		if p.Args != nil {
			cfg.Player.Args = p.Args
		}
		setString(&cfg.Player.FallbackShell, p.FallbackShell)
		setString(&cfg.Player.Display, p.Display)
		if err := setDuration(&cfg.Player.StartupProbe, "player.startupProbe", p.StartupProbe); err != nil {
			return err
		}
	}

	if p := f.Playback; p != nil {
		durations := []struct {
			dst   *time.Duration
			field string
			raw   string
		}{
			{&cfg.Playback.RunDuration, "playback.runDuration", p.RunDuration},
			{&cfg.Playback.PollInterval, "playback.pollInterval", p.PollInterval},
			{&cfg.Playback.StopGrace, "playback.stopGrace", p.StopGrace},
			{&cfg.Playback.KillWait, "playback.killWait", p.KillWait},
		}
		for _, d := range durations {
			if err := setDuration(d.dst, d.field, d.raw); err != nil {
				return err
			}
		}
	}

	if t := f.Transcode; t != nil {
		setString(&cfg.Transcode.FFmpegBin, t.FFmpegBin)
		setString(&cfg.Transcode.FFprobeBin, t.FFprobeBin)
		setString(&cfg.Transcode.PreferredCodec, t.PreferredCodec)
		if err := setDuration(&cfg.Transcode.Timeout, "transcode.timeout", t.Timeout); err != nil {
			return err
		}
		if err := setDuration(&cfg.Transcode.ProgressInterval, "transcode.progressInterval", t.ProgressInterval); err != nil {
			return err
		}
		if err := setDuration(&cfg.Transcode.StallTimeout, "transcode.stallTimeout", t.StallTimeout); err != nil {
			return err
		}
	}

	if c := f.Cleanup; c != nil && c.TolerateMissing != nil {
		cfg.Cleanup.TolerateMissing = *c.TolerateMissing
	}

	if s := f.Status; s != nil {
		setString(&cfg.Status.Listen, s.Listen)
		setInt(&cfg.Status.RateLimit, s.RateLimit)
		setString(&cfg.Status.Token, s.Token)
	}

	if m := f.Metrics; m != nil {
		setString(&cfg.Metrics.Textfile, m.Textfile)
	}

	if t := f.Tracing; t != nil {
		if t.Enabled != nil {
			cfg.Tracing.Enabled = *t.Enabled
		}
		setString(&cfg.Tracing.Exporter, t.Exporter)
		setString(&cfg.Tracing.Endpoint, t.Endpoint)
		if t.SamplingRate != nil {
			cfg.Tracing.SamplingRate = *t.SamplingRate
		}
	}

	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)

	cfg.Source.Kind = l.envString("KIOSK_SOURCE", cfg.Source.Kind)
	cfg.Source.FolderID = l.envString("KIOSK_FOLDER_ID", cfg.Source.FolderID)
	cfg.Source.LocalFolder = l.envString("KIOSK_LOCAL_FOLDER", cfg.Source.LocalFolder)
	cfg.Source.Media = l.envString("KIOSK_MEDIA", cfg.Source.Media)
	cfg.Source.MimeTypes = l.envList("KIOSK_MIME_TYPES", cfg.Source.MimeTypes)
	cfg.Source.PageSize = l.envInt("KIOSK_PAGE_SIZE", cfg.Source.PageSize)
	cfg.Source.AwaitTimeout = l.envDuration("KIOSK_AWAIT_TIMEOUT", cfg.Source.AwaitTimeout)

	cfg.Auth.Mode = l.envString("KIOSK_AUTH_MODE", cfg.Auth.Mode)
	cfg.Auth.CredentialsFile = l.envString("KIOSK_CREDENTIALS_FILE", cfg.Auth.CredentialsFile)
	cfg.Auth.TokenFile = l.envString("KIOSK_TOKEN_FILE", cfg.Auth.TokenFile)

	cfg.Download.Dir = l.envString("KIOSK_DOWNLOAD_DIR", cfg.Download.Dir)
	cfg.Download.ChunkSize = l.envInt("KIOSK_CHUNK_SIZE", cfg.Download.ChunkSize)

	cfg.Viewer.Bin = l.envString("KIOSK_VIEWER_BIN", cfg.Viewer.Bin)
	cfg.Viewer.Args = l.envFields("KIOSK_VIEWER_ARGS", cfg.Viewer.Args)

	cfg.Player.Bin = l.envString("KIOSK_PLAYER_BIN", cfg.Player.Bin)
	cfg.Player.Args = l.envFields("KIOSK_PLAYER_ARGS", cfg.Player.Args)
	cfg.Player.FallbackShell = l.envString("KIOSK_FALLBACK_SHELL", cfg.Player.FallbackShell)
	cfg.Player.Display = l.envString("KIOSK_DISPLAY", cfg.Player.Display)
	cfg.Player.StartupProbe = l.envDuration("KIOSK_STARTUP_PROBE", cfg.Player.StartupProbe)

	cfg.Playback.RunDuration = l.envDuration("KIOSK_RUN_DURATION", cfg.Playback.RunDuration)
	cfg.Playback.PollInterval = l.envDuration("KIOSK_POLL_INTERVAL", cfg.Playback.PollInterval)
	cfg.Playback.StopGrace = l.envDuration("KIOSK_STOP_GRACE", cfg.Playback.StopGrace)
	cfg.Playback.KillWait = l.envDuration("KIOSK_KILL_WAIT", cfg.Playback.KillWait)

	cfg.Transcode.FFmpegBin = l.envString("KIOSK_FFMPEG_BIN", cfg.Transcode.FFmpegBin)
	cfg.Transcode.FFprobeBin = l.envString("KIOSK_FFPROBE_BIN", cfg.Transcode.FFprobeBin)
	cfg.Transcode.Timeout = l.envDuration("KIOSK_TRANSCODE_TIMEOUT", cfg.Transcode.Timeout)
	cfg.Transcode.PreferredCodec = l.envString("KIOSK_PREFERRED_CODEC", cfg.Transcode.PreferredCodec)
	cfg.Transcode.ProgressInterval = l.envDuration("KIOSK_PROGRESS_INTERVAL", cfg.Transcode.ProgressInterval)
	cfg.Transcode.StallTimeout = l.envDuration("KIOSK_STALL_TIMEOUT", cfg.Transcode.StallTimeout)

	cfg.Cleanup.TolerateMissing = l.envBool("KIOSK_CLEANUP_TOLERATE_MISSING", cfg.Cleanup.TolerateMissing)

	cfg.Status.Listen = l.envString("KIOSK_STATUS_LISTEN", cfg.Status.Listen)
	cfg.Status.RateLimit = l.envInt("KIOSK_STATUS_RATE_LIMIT", cfg.Status.RateLimit)
	cfg.Status.Token = l.envString("KIOSK_STATUS_TOKEN", cfg.Status.Token)

	cfg.Metrics.Textfile = l.envString("KIOSK_METRICS_TEXTFILE", cfg.Metrics.Textfile)

	cfg.Tracing.Enabled = l.envBool("KIOSK_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString("KIOSK_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString("KIOSK_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat("KIOSK_TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}
