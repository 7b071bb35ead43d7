package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNew(reg)

	m.JobFinished("success", "")
	m.JobFinished("failure", "quota_exceeded")
	m.JobFinished("failure", "quota_exceeded")
	m.CredentialReplay("upload_bytes")
	m.SetQueueDepth(3)
	m.ObserveStep("download", 150*time.Millisecond)
	m.NotificationDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobs.WithLabelValues("success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobs.WithLabelValues("failure", "quota_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replays.WithLabelValues("upload_bytes")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifyDrops))
	assert.Equal(t, 1, testutil.CollectAndCount(m.steps))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.JobFinished("success", "")
	m.ObserveStep("x", time.Second)
	m.SetQueueDepth(1)
	m.CredentialReplay("x")
	m.NotificationDropped()
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNew(reg).JobFinished("success", "")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `photodrop_pipeline_jobs_total{kind="",result="success"} 1`)
}
