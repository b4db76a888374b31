// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Info is the subset of ffprobe output the kiosk cares about.
type Info struct {
	VideoCodec string
	// Containers lists the demuxer names, e.g. [mov mp4 m4a 3gp 3g2 mj2].
	Containers []string
	Duration   time.Duration
}

// Prober runs ffprobe.
type Prober struct {
	Bin string
}

// Probe executes ffprobe and returns stream info.
func (p Prober) Probe(ctx context.Context, path string) (Info, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	// #nosec G204 -- binary comes from operator config; path is an argument, not shell input
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, truncate(stderr.String(), 4096))
	}

	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return Info{}, fmt.Errorf("ffprobe json decode: %w", err)
	}

	var info Info
	for _, s := range data.Streams {
		if s.CodecType == "video" && s.CodecName != "" && info.VideoCodec == "" {
			info.VideoCodec = s.CodecName
		}
	}
	if info.VideoCodec == "" {
		return Info{}, fmt.Errorf("ffprobe: no video stream in %s", path)
	}
	for _, part := range strings.Split(data.Format.FormatName, ",") {
		if t := strings.TrimSpace(part); t != "" {
			info.Containers = append(info.Containers, t)
		}
	}
	if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = time.Duration(d * float64(time.Second))
	}
	return info, nil
}

type probeData struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// NeedsConversion reports whether a file must be transcoded before playback:
// true unless the video codec is preferred and the container is MP4 or MOV.
func NeedsConversion(info Info, preferred string) bool {
	if !strings.EqualFold(info.VideoCodec, preferred) {
		return true
	}
	for _, c := range info.Containers {
		if c == "mp4" || c == "mov" {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
