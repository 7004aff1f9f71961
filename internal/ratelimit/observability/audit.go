// Package observability provides audit logging helpers for the ratelimit module.
package observability

import (
	"context"
	"log/slog"

	"linkage/pkg/platform/audit"
	"linkage/pkg/requestcontext"
)

// SecurityPublisher records budget violations on the security audit trail.
type SecurityPublisher interface {
	Emit(event audit.SecurityEvent)
}

// LogAudit logs budget events to both the structured logger and the security
// audit trail. It enriches events with the request ID and extracts
// subject/reason from attrList.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher SecurityPublisher, event string, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}

	args := append(attrList, "event", event, "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, event, args...)
	}

	if publisher == nil {
		return
	}

	publisher.Emit(audit.SecurityEvent{
		Action:    event,
		Subject:   extractSubject(attrList),
		Reason:    extractReason(attrList),
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestID,
		Severity:  audit.SeverityWarning,
	})
}

func extractSubject(attrList []any) string {
	for _, key := range []string{"identifier", "tenant_id", "ip"} {
		if val := attrString(attrList, key); val != "" {
			return val
		}
	}
	return ""
}

func extractReason(attrList []any) string {
	for _, key := range []string{"reason", "bypass_type"} {
		if val := attrString(attrList, key); val != "" {
			return val
		}
	}
	return ""
}

// attrString walks a [key1, value1, key2, value2, ...] slog attribute list
// and returns the first string value stored under key.
func attrString(attrList []any, key string) string {
	for i := 0; i+1 < len(attrList); i += 2 {
		k, ok := attrList[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := attrList[i+1].(string); ok {
			return v
		}
	}
	return ""
}
