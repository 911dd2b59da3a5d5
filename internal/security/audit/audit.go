package audit

import (
	"context"
	"log/slog"
	"time"
)

type ctxKey struct{}

// WithRequestID stores the request ID for later audit lines
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request ID stored by WithRequestID, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Logger writes structured audit lines. Secrets never pass through here:
// callers hand over identifiers and outcomes only.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

// Entry is one audited action
type Entry struct {
	SocietyCode string
	Actor       string // "society:12", "resident:40" or an email for failed logins
	Action      string
	Resource    string
	ResourceID  string
	Status      string
	Details     string
}

func (al *Logger) Log(ctx context.Context, e Entry) {
	al.logger.InfoContext(ctx, "audit",
		slog.String("action", e.Action),
		slog.String("resource", e.Resource),
		slog.String("resource_id", e.ResourceID),
		slog.String("society_code", e.SocietyCode),
		slog.String("actor", e.Actor),
		slog.String("status", e.Status),
		slog.String("details", e.Details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogRegistration(ctx context.Context, societyCode, status, details string) {
	al.Log(ctx, Entry{SocietyCode: societyCode, Actor: "anonymous", Action: "register", Resource: "society", ResourceID: societyCode, Status: status, Details: details})
}

func (al *Logger) LogOccupancy(ctx context.Context, societyCode, action, flatID, status, details string) {
	al.Log(ctx, Entry{SocietyCode: societyCode, Actor: "society:" + societyCode, Action: action, Resource: "flat", ResourceID: flatID, Status: status, Details: details})
}

func (al *Logger) LogLogin(ctx context.Context, accountType, email, status string) {
	al.Log(ctx, Entry{Actor: email, Action: "login", Resource: accountType, Status: status})
}

func (al *Logger) LogPasswordChange(ctx context.Context, accountType, actor, status, details string) {
	al.Log(ctx, Entry{Actor: actor, Action: "change_password", Resource: accountType, ResourceID: actor, Status: status, Details: details})
}

func (al *Logger) LogDenied(ctx context.Context, actor, reason string) {
	al.Log(ctx, Entry{Actor: actor, Action: "access_denied", Resource: "api", Status: "denied", Details: reason})
}
