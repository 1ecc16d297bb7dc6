package auth

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike   AlertType = "login_failure_spike"
	AlertRefreshFailureSpike AlertType = "refresh_failure_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

const (
	defaultLoginFailureWindow      = time.Minute
	defaultLoginFailureThreshold   = 5
	defaultRefreshFailureWindow    = 5 * time.Minute
	defaultRefreshFailureThreshold = 3
)

// window is a sliding count of events within a duration.
type window struct {
	times     []time.Time
	span      time.Duration
	threshold int
}

// failureMonitor watches audit events for repeated failures.
type failureMonitor struct {
	mu      sync.Mutex
	now     func() time.Time
	login   window
	refresh window
	alertFn AlertFunc
}

func newFailureMonitor(alertFn AlertFunc, now func() time.Time) *failureMonitor {
	return &failureMonitor{
		now:     now,
		login:   window{span: defaultLoginFailureWindow, threshold: defaultLoginFailureThreshold},
		refresh: window{span: defaultRefreshFailureWindow, threshold: defaultRefreshFailureThreshold},
		alertFn: alertFn,
	}
}

func (m *failureMonitor) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditLoginFailure:
		m.record(&m.login, AlertLoginFailureSpike, "login failure rate exceeds threshold")
	case AuditRefreshFailure:
		m.record(&m.refresh, AlertRefreshFailureSpike, "token refresh keeps failing")
	}
}

func (m *failureMonitor) record(w *window, typ AlertType, msg string) {
	m.mu.Lock()
	now := m.now()
	w.times = trimWindow(append(w.times, now), now, w.span)
	var alert *AlertEvent
	if len(w.times) >= w.threshold {
		alert = &AlertEvent{Type: typ, Message: msg, Count: len(w.times), Threshold: w.threshold, Timestamp: now}
		// Reset to avoid repeated alerts within the same spike.
		w.times = w.times[:0]
	}
	m.mu.Unlock()

	if alert != nil {
		m.alertFn(*alert)
	}
}

// trimWindow removes entries older than (now - span) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, span time.Duration) []time.Time {
	cutoff := now.Add(-span)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
