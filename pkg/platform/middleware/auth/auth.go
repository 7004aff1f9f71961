// Package auth guards routes that require an authenticated operator.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "linkage/pkg/domain"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/audit"
	"linkage/pkg/platform/httputil"
	"linkage/pkg/requestcontext"
)

// TokenVerifier validates a bearer token and returns the operator it
// identifies.
type TokenVerifier interface {
	Verify(tokenString string) (id.OperatorID, error)
}

// SecurityPublisher records rejected authentication attempts on the security
// audit trail.
type SecurityPublisher interface {
	Emit(event audit.SecurityEvent)
}

// Option configures the middleware.
type Option func(*options)

type options struct {
	security SecurityPublisher
}

// WithSecurityPublisher wires authentication failures into the security
// audit trail.
func WithSecurityPublisher(pub SecurityPublisher) Option {
	return func(o *options) { o.security = pub }
}

// RequireOperator rejects requests that do not carry a valid operator bearer
// token and stores the operator identity in the request context for
// downstream handlers.
func RequireOperator(verifier TokenVerifier, logger *slog.Logger, opts ...Option) func(http.Handler) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				reject(ctx, w, logger, o.security, "missing bearer token", nil)
				return
			}

			operatorID, err := verifier.Verify(token)
			if err != nil {
				reject(ctx, w, logger, o.security, "invalid or expired token", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithOperatorID(ctx, operatorID)))
		})
	}
}

func reject(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, security SecurityPublisher, reason string, cause error) {
	attrs := []any{
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	logger.WarnContext(ctx, "authentication failed", attrs...)

	if security != nil {
		security.Emit(audit.SecurityEvent{
			Subject:   requestcontext.ClientIP(ctx),
			Action:    string(audit.EventAuthFailed),
			Reason:    reason,
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestcontext.RequestID(ctx),
			Severity:  audit.SeverityWarning,
		})
	}

	httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
}
