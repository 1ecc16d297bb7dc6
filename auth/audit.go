package auth

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent identifies a security-relevant session change.
type AuditEvent string

const (
	AuditLoginSuccess   AuditEvent = "login_success"
	AuditLoginFailure   AuditEvent = "login_failure"
	AuditLogout         AuditEvent = "logout"
	AuditRefreshSuccess AuditEvent = "refresh_success"
	AuditRefreshFailure AuditEvent = "refresh_failure"
	AuditVerifyFailure  AuditEvent = "verify_failure"
	AuditSessionCleared AuditEvent = "session_cleared"
)

// auditLogger wraps slog.Logger for structured audit logging. Tokens and
// passwords are never passed to it.
type auditLogger struct {
	logger  *slog.Logger
	now     func() time.Time
	monitor *failureMonitor
}

func newAuditLogger(logger *slog.Logger, now func() time.Time) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
		now:    now,
	}
}

func (al *auditLogger) log(ctx context.Context, event AuditEvent, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", append(base, attrs...)...)
	al.monitor.recordEvent(event)
}

// logEvent is a convenience for events tied to a username.
func (al *auditLogger) logEvent(ctx context.Context, event AuditEvent, username string, extra ...slog.Attr) {
	al.log(ctx, event, append([]slog.Attr{slog.String("username", username)}, extra...)...)
}

// logFailure records a failed attempt and its reason.
func (al *auditLogger) logFailure(ctx context.Context, event AuditEvent, reason string, extra ...slog.Attr) {
	al.log(ctx, event, append([]slog.Attr{slog.String("reason", reason)}, extra...)...)
}
