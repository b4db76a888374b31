// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/kiosk/internal/config"
	"github.com/ManuGH/kiosk/internal/validate"
	"github.com/ManuGH/kiosk/internal/version"
)

const redacted = "***"

func runConfigCLI(args []string) int {
	return configCLI(args, os.Stdout, os.Stderr)
}

func configCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "dump":
		return runConfigDump(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  kiosk config validate [--file|-f kiosk.yaml]")
	fmt.Fprintln(w, "  kiosk config dump [--file|-f kiosk.yaml] [--format=yaml|json]")
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kiosk config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := strings.TrimSpace(file)
	if _, err := config.NewLoader(path, version.Version).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n", describe(path))
		var ve validate.ValidationError
		if !errors.As(err, &ve) {
			fmt.Fprintf(stderr, "  %v\n", err)
			return 1
		}
		for _, fe := range ve.Errors() {
			fmt.Fprintf(stderr, "  %s: %s\n", fe.Field, fe.Message)
		}
		return 1
	}
	fmt.Fprintf(stdout, "%s is valid\n", describe(path))
	return 0
}

func runConfigDump(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kiosk config dump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var file, format string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := strings.TrimSpace(file)
	cfg, err := config.NewLoader(path, version.Version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", describe(path), err)
		return 1
	}
	fileCfg := fileConfigFromAppConfig(cfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fileCfg); err != nil {
			fmt.Fprintf(stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

func describe(path string) string {
	if path == "" {
		return "environment and defaults"
	}
	return path
}

// fileConfigFromAppConfig renders the effective configuration in file form.
// Secrets are masked.
func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	tolerate := cfg.Cleanup.TolerateMissing
	tracing := cfg.Tracing.Enabled
	sampling := cfg.Tracing.SamplingRate
	token := ""
	if cfg.Status.Token != "" {
		token = redacted
	}

	return config.FileConfig{
		LogLevel:   cfg.LogLevel,
		LogService: cfg.LogService,
		Source: &config.SourceFile{
			Kind:         cfg.Source.Kind,
			FolderID:     cfg.Source.FolderID,
			LocalFolder:  cfg.Source.LocalFolder,
			Media:        cfg.Source.Media,
			MimeTypes:    cfg.Source.MimeTypes,
			PageSize:     cfg.Source.PageSize,
			AwaitTimeout: cfg.Source.AwaitTimeout.String(),
		},
		Auth: &config.AuthFile{
			Mode:            cfg.Auth.Mode,
			CredentialsFile: cfg.Auth.CredentialsFile,
			TokenFile:       cfg.Auth.TokenFile,
		},
		Download: &config.DownloadFile{
			Dir:       cfg.Download.Dir,
			ChunkSize: cfg.Download.ChunkSize,
		},
		Viewer: &config.ProgramFile{
			Bin:  cfg.Viewer.Bin,
			Args: cfg.Viewer.Args,
		},
		Player: &config.PlayerFile{
			Bin:           cfg.Player.Bin,
			Args:          cfg.Player.Args,
			FallbackShell: cfg.Player.FallbackShell,
			Display:       cfg.Player.Display,
			StartupProbe:  cfg.Player.StartupProbe.String(),
		},
		Playback: &config.PlaybackFile{
			RunDuration:  cfg.Playback.RunDuration.String(),
			PollInterval: cfg.Playback.PollInterval.String(),
			StopGrace:    cfg.Playback.StopGrace.String(),
			KillWait:     cfg.Playback.KillWait.String(),
		},
		Transcode: &config.TranscodeFile{
			FFmpegBin:        cfg.Transcode.FFmpegBin,
			FFprobeBin:       cfg.Transcode.FFprobeBin,
			Timeout:          cfg.Transcode.Timeout.String(),
			PreferredCodec:   cfg.Transcode.PreferredCodec,
			ProgressInterval: cfg.Transcode.ProgressInterval.String(),
			StallTimeout:     cfg.Transcode.StallTimeout.String(),
		},
		Cleanup: &config.CleanupFile{TolerateMissing: &tolerate},
		Status: &config.StatusFile{
			Listen:    cfg.Status.Listen,
			RateLimit: cfg.Status.RateLimit,
			Token:     token,
		},
		Metrics: &config.MetricsFile{Textfile: cfg.Metrics.Textfile},
		Tracing: &config.TracingFile{
			Enabled:      &tracing,
			Exporter:     cfg.Tracing.Exporter,
			Endpoint:     cfg.Tracing.Endpoint,
			SamplingRate: &sampling,
		},
	}
}
