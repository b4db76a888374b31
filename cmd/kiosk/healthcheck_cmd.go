// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func runHealthcheckCLI(args []string) int {
	return healthcheckCLI(args, os.Stdout, os.Stderr)
}

// healthcheckCLI probes a running kiosk's status listener, for use as a
// container or systemd watchdog check.
func healthcheckCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kiosk healthcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "ready", "probe to query: ready or live")
	addr := fs.String("addr", "127.0.0.1:8089", "status listener address")
	timeout := fs.Duration("timeout", 5*time.Second, "probe timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var path string
	switch *mode {
	case "ready":
		path = "/readyz"
	case "live":
		path = "/healthz"
	default:
		fmt.Fprintf(stderr, "Unknown mode %q (use ready or live)\n", *mode)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+*addr+path, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Healthcheck failed: %v\n", err)
		return 1
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "Healthcheck failed (network): %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "Healthcheck failed (%s): %s %s\n", *mode, resp.Status, body.Status)
		return 1
	}
	fmt.Fprintf(stdout, "Healthcheck successful (%s) %s\n", *mode, body.Status)
	return 0
}
