// Package requestid assigns each request a correlation id, honoring one
// supplied by the caller.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"linkage/pkg/requestcontext"
)

// Header is the request id header, read from the request and echoed on the
// response.
const Header = "X-Request-ID"

// Middleware injects a request id into the context so logs, audit events,
// and error responses can be correlated.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
