// Package audit records security-relevant events. Recording is fire-and-forget
// from the orchestrators' perspective: a sink failure is logged and never
// blocks the primary security decision.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sink receives audit events. Implementations may write to a database, a
// message bus, or the log.
type Sink interface {
	RecordEvent(ctx context.Context, identityID, action string, metadata map[string]any) error
}

// Recorder inserts the event timestamp and swallows sink failures.
type Recorder struct {
	Sink   Sink
	Logger *slog.Logger
}

// Record emits an event, logging but never returning sink failures.
func (r *Recorder) Record(ctx context.Context, identityID, action string, metadata map[string]any) {
	if r == nil || r.Sink == nil {
		return
	}
	if err := r.Sink.RecordEvent(ctx, identityID, action, metadata); err != nil {
		logger := r.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("audit sink failure",
			"action", action,
			"identity_id", identityID,
			"error", err,
		)
	}
}

// LogSink writes audit events to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

func (s *LogSink) RecordEvent(ctx context.Context, identityID, action string, metadata map[string]any) error {
	attrs := []any{
		"identity_id", identityID,
		"action", action,
		"ts", time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		attrs = append(attrs, k, v)
	}
	s.Logger.Info("audit", attrs...)
	return nil
}

// Common audit actions.
const (
	ActionLogin                = "auth.login"
	ActionLoginBackupCode      = "auth.login.backup_code"
	ActionLoginCode            = "auth.login.code"
	ActionPasswordChangeForced = "auth.login.password_change_required"
	ActionRevalidation         = "auth.revalidation"
	ActionRefresh              = "auth.refresh"
	ActionLogout               = "auth.logout"
	ActionPasswordChanged      = "auth.password.changed"
	ActionResetRequested       = "auth.reset.requested"
	ActionResetCompleted       = "auth.reset.completed"
	ActionTwoFactorEnabled     = "auth.2fa.enabled"
	ActionTwoFactorDisabled    = "auth.2fa.disabled"
	ActionIdentityCreated      = "auth.identity.created"
	ActionIdentityDeactivated  = "auth.identity.deactivated"
	ActionTrustedDeviceMinted  = "auth.trusted_device.minted"
)
