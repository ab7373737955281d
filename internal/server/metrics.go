package server

import (
	"sync"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	// Media upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Auth metrics
	loginAttemptsTotal int64
	loginSuccessTotal  int64
	loginFailuresTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordUpload records a successful media upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records a media upload error
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordLoginAttempt records a login attempt
func (m *Metrics) RecordLoginAttempt(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginAttemptsTotal++
	if success {
		m.loginSuccessTotal++
	} else {
		m.loginFailuresTotal++
	}
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:        m.uploadsTotal,
		UploadBytesTotal:    m.uploadBytesTotal,
		UploadErrorsTotal:   m.uploadErrorsTotal,
		UploadAvgDurationMs: avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		LoginAttemptsTotal:  m.loginAttemptsTotal,
		LoginSuccessTotal:   m.loginSuccessTotal,
		LoginFailuresTotal:  m.loginFailuresTotal,
		RequestsTotal:       m.requestsTotal,
		RequestErrors5xx:    m.requestErrors5xx,
		RequestErrors4xx:    m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	LoginAttemptsTotal int64 `json:"login_attempts_total"`
	LoginSuccessTotal  int64 `json:"login_success_total"`
	LoginFailuresTotal int64 `json:"login_failures_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
