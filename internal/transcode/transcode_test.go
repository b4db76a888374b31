// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package transcode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBin writes an executable shell script and returns its path.
func fakeBin(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

const lastArg = `for a in "$@"; do out="$a"; done`

func TestProbe(t *testing.T) {
	probe := fakeBin(t, "ffprobe", `cat <<'JSON'
{"streams":[{"codec_type":"audio","codec_name":"aac"},{"codec_type":"video","codec_name":"hevc"}],
 "format":{"format_name":"mov,mp4,m4a,3gp,3g2,mj2","duration":"12.500000"}}
JSON`)

	info, err := Prober{Bin: probe}.Probe(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "hevc", info.VideoCodec)
	assert.Equal(t, []string{"mov", "mp4", "m4a", "3gp", "3g2", "mj2"}, info.Containers)
	assert.Equal(t, 12500*time.Millisecond, info.Duration)
}

func TestProbe_Errors(t *testing.T) {
	audioOnly := fakeBin(t, "ffprobe", `echo '{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"format_name":"mp3"}}'`)
	_, err := Prober{Bin: audioOnly}.Probe(context.Background(), "song.mp3")
	assert.ErrorContains(t, err, "no video stream")

	broken := fakeBin(t, "ffprobe", `echo "moov atom not found" >&2; exit 1`)
	_, err = Prober{Bin: broken}.Probe(context.Background(), "broken.mp4")
	assert.ErrorContains(t, err, "moov atom not found")
}

func TestNeedsConversion(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want bool
	}{
		{"h264 mp4", Info{VideoCodec: "h264", Containers: []string{"mov", "mp4", "m4a"}}, false},
		{"h264 mkv", Info{VideoCodec: "h264", Containers: []string{"matroska", "webm"}}, true},
		{"hevc mp4", Info{VideoCodec: "hevc", Containers: []string{"mov", "mp4"}}, true},
		{"vp9 webm", Info{VideoCodec: "vp9", Containers: []string{"matroska", "webm"}}, true},
		{"case insensitive", Info{VideoCodec: "H264", Containers: []string{"mov"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsConversion(tt.info, "h264"))
		})
	}
}

func TestConvert_Success(t *testing.T) {
	ffmpeg := fakeBin(t, "ffmpeg", lastArg+`
for i in 1 2 3 4 5; do
  echo "frame=$i"
  echo "out_time_us=${i}000000"
  echo "progress=continue"
done
echo "out_time_us=10000000"
echo "progress=end"
echo converted > "$out"`)

	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mkv")
	require.NoError(t, os.WriteFile(src, []byte("src"), 0o600))

	var reports []Progress
	tr := New(Options{
		FFmpegBin:        ffmpeg,
		ProgressInterval: time.Hour,
		OnProgress:       func(p Progress) { reports = append(reports, p) },
	})

	dst, err := tr.Convert(context.Background(), src, Info{VideoCodec: "vp9", Duration: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip_converted.mp4"), dst)
	assert.FileExists(t, dst)

	require.Len(t, reports, 2, "first sample plus the final report")
	assert.Equal(t, time.Second, reports[0].OutTime)
	assert.InDelta(t, 10.0, reports[0].Percent, 0.001)
	assert.True(t, reports[1].Done)
	assert.Equal(t, float64(100), reports[1].Percent)
}

func TestConvert_PassesArguments(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	ffmpeg := fakeBin(t, "ffmpeg", lastArg+`
echo "$@" > `+argsFile+`
: > "$out"`)

	src := filepath.Join(t.TempDir(), "clip.webm")
	require.NoError(t, os.WriteFile(src, nil, 0o600))

	_, err := New(Options{FFmpegBin: ffmpeg}).Convert(context.Background(), src, Info{})
	require.NoError(t, err)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(args), "-i "+src)
	assert.Contains(t, string(args), "-c:v libx264")
	assert.Contains(t, string(args), "-progress pipe:1")
}

func TestConvert_Timeout(t *testing.T) {
	ffmpeg := fakeBin(t, "ffmpeg", lastArg+`
echo partial > "$out"
sleep 30`)
	src := filepath.Join(t.TempDir(), "clip.avi")
	require.NoError(t, os.WriteFile(src, nil, 0o600))

	start := time.Now()
	_, err := New(Options{FFmpegBin: ffmpeg, Timeout: 300 * time.Millisecond}).Convert(context.Background(), src, Info{})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 10*time.Second, "the process group must be killed at the deadline")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(src), "clip_converted.mp4"))
}

func TestConvert_Stalled(t *testing.T) {
	ffmpeg := fakeBin(t, "ffmpeg", lastArg+`
echo partial > "$out"
printf 'out_time_us=1000000\ntotal_size=10\nprogress=continue\n'
sleep 30`)
	src := filepath.Join(t.TempDir(), "clip.avi")
	require.NoError(t, os.WriteFile(src, nil, 0o600))

	start := time.Now()
	_, err := New(Options{FFmpegBin: ffmpeg, StallTimeout: 400 * time.Millisecond}).Convert(context.Background(), src, Info{})
	require.ErrorIs(t, err, ErrStalled)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(src), "clip_converted.mp4"))
}

func TestConvert_NonZeroExit(t *testing.T) {
	ffmpeg := fakeBin(t, "ffmpeg", lastArg+`
echo partial > "$out"
echo "Unknown encoder 'libx264'" >&2
exit 1`)
	src := filepath.Join(t.TempDir(), "clip.mov")
	require.NoError(t, os.WriteFile(src, nil, 0o600))

	_, err := New(Options{FFmpegBin: ffmpeg}).Convert(context.Background(), src, Info{})
	require.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, err.Error(), "Unknown encoder")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(src), "clip_converted.mp4"))
}

func TestConvert_MissingBinary(t *testing.T) {
	src := filepath.Join(t.TempDir(), "clip.mov")
	_, err := New(Options{FFmpegBin: "/nonexistent/ffmpeg"}).Convert(context.Background(), src, Info{})
	assert.ErrorIs(t, err, ErrFailed)
}

func TestConvert_Canceled(t *testing.T) {
	ffmpeg := fakeBin(t, "ffmpeg", "sleep 30")
	src := filepath.Join(t.TempDir(), "clip.mov")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	_, err := New(Options{FFmpegBin: ffmpeg}).Convert(ctx, src, Info{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestInspect(t *testing.T) {
	probe := fakeBin(t, "ffprobe", `echo '{"streams":[{"codec_type":"video","codec_name":"h264"}],"format":{"format_name":"mov,mp4"}}'`)
	tr := New(Options{FFprobeBin: probe})

	info, needs, err := tr.Inspect(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.False(t, needs)
	assert.Equal(t, "h264", info.VideoCodec)
}

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)
	assert.Empty(t, r.Lines())

	for _, l := range []string{"a", "", "b", "c", "d"} {
		r.Add(l)
	}
	assert.Equal(t, []string{"b", "c", "d"}, r.Lines())
	assert.Equal(t, "b c d", strings.Join(r.Lines(), " "))
}
