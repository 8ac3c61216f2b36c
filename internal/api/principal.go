package api

import (
	"context"
	"net/http"

	"github.com/ignite/paidmedia-monitor/internal/pkg/httputil"
)

// Role is the caller's access level, asserted by the fronting gateway.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Principal is the authenticated caller. Authentication itself happens
// upstream; this service trusts the identity headers the gateway injects
// and only enforces scoping.
type Principal struct {
	Role     Role
	ClientID string
}

// CanAccessClient reports whether the principal may touch the given
// client's data. Admins see everything; client principals only their own.
func (p Principal) CanAccessClient(clientID string) bool {
	if p.Role == RoleAdmin {
		return true
	}
	return p.ClientID != "" && p.ClientID == clientID
}

type principalKey struct{}

// WithPrincipal is middleware that parses the gateway identity headers.
// Requests without a valid role are rejected.
func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := Role(r.Header.Get("X-Principal-Role"))
		switch role {
		case RoleAdmin, RoleClient:
		default:
			httputil.Error(w, http.StatusUnauthorized, "missing or invalid principal")
			return
		}

		p := Principal{Role: role, ClientID: r.Header.Get("X-Client-ID")}
		if p.Role == RoleClient && p.ClientID == "" {
			httputil.Error(w, http.StatusUnauthorized, "client principal requires X-Client-ID")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFrom returns the request principal. Handlers behind
// WithPrincipal can rely on it being present.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
