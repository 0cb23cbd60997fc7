package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDownloadIncrementsCounterAndHistogram(t *testing.T) {
	m := New()
	m.RecordDownload("postgresql", "success", 2*time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "spindb_binary_downloads_total")
	assert.Contains(t, body, `engine="postgresql"`)
}

func TestRecordProcessStartAndStopTrackRunningGauge(t *testing.T) {
	m := New()
	m.RecordProcessStart("redis", "success")
	m.RecordProcessStart("redis", "success")
	m.RecordProcessStop("redis", "success")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "spindb_processes_running{engine=\"redis\"} 1")
}

func TestRecordPullObservesDuration(t *testing.T) {
	m := New()
	m.RecordPull("replace", "success", 5*time.Second)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "spindb_pull_total")
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	a := New()
	b := New()
	a.RecordInstall("mysql", "success")
	b.RecordInstall("mongodb", "success")

	reqA := httptest.NewRequest("GET", "/metrics", nil)
	recA := httptest.NewRecorder()
	a.Handler().ServeHTTP(recA, reqA)
	assert.Contains(t, recA.Body.String(), `engine="mysql"`)
	assert.NotContains(t, recA.Body.String(), `engine="mongodb"`)
}
