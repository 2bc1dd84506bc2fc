package api

import (
	"context"
	"net/http"

	"github.com/token-gate/internal/gate"
)

// adminTokenHeader carries the shared admin credential.
const adminTokenHeader = "X-Admin-Token"

type contextKey string

const capabilityKey contextKey = "adminCapability"

// AdminMiddleware authorizes the request's admin token and stores the
// resulting capability in the request context. Requests without a valid
// token never reach the wrapped handler.
func AdminMiddleware(adminGate *gate.AdminGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capability, err := adminGate.Authorize(r.Header.Get(adminTokenHeader))
			if err != nil {
				respondServiceError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), capabilityKey, capability)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// capabilityFrom returns the capability stored by AdminMiddleware. The
// zero capability is returned for requests that bypassed the middleware,
// and fails every downstream authorization check.
func capabilityFrom(r *http.Request) gate.Capability {
	if capability, ok := r.Context().Value(capabilityKey).(gate.Capability); ok {
		return capability
	}
	return gate.Capability{}
}
