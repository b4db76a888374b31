// SPDX-License-Identifier: MIT

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRun(t *testing.T) {
	runsTotal.Reset()

	RecordRun("completed")
	RecordRun("completed")
	RecordRun("no_file")

	assert.Equal(t, 2.0, testutil.ToFloat64(runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(runsTotal.WithLabelValues("no_file")))
	assert.Greater(t, testutil.ToFloat64(lastRunTimestamp), 0.0)
}

func TestObservePlayback(t *testing.T) {
	playbackDuration.Reset()

	ObservePlayback("video", "exited", 90*time.Second)

	obs, err := playbackDuration.GetMetricWithLabelValues("video", "exited")
	require.NoError(t, err)

	var m dto.Metric
	require.NoError(t, obs.(prometheus.Metric).Write(&m))
	assert.Equal(t, uint64(1), m.GetHistogram().GetSampleCount())
	assert.InDelta(t, 90.0, m.GetHistogram().GetSampleSum(), 0.001)
}

func TestDownloadAndTranscodeCounters(t *testing.T) {
	downloadBytes.Reset()
	transcodeErrors.Reset()

	AddDownloadBytes("direct", 1024)
	AddDownloadBytes("direct", 1024)
	IncTranscodeError("timeout")

	assert.Equal(t, 2048.0, testutil.ToFloat64(downloadBytes.WithLabelValues("direct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(transcodeErrors.WithLabelValues("timeout")))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "kiosk_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	path := filepath.Join(t.TempDir(), "kiosk.prom")
	require.NoError(t, writeTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "kiosk_test_total 3"))
}
