/*
auth.go - Shared-code capability resolution

PURPOSE:
  Login-by-code is not real authentication; a code is a shared secret that
  grants a capability. This file resolves a code into either the Admin
  capability or Employee(userID), once per request, so handlers and the
  domain layer work against an already-resolved capability and never
  re-derive roles from codes.

FLOW:
  POST /api/login           resolves a code for the client UI
  X-Access-Code header      resolved by middleware into request context
*/
package api

import (
	"context"
	"net/http"

	"github.com/solara/leavedesk/leave"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Capability is a resolved permission: either the Admin capability or an
// employee capability bound to one user.
type Capability struct {
	Role   Role
	UserID leave.UserID
}

func (c Capability) IsAdmin() bool { return c.Role == RoleAdmin }

type contextKey struct{}

var capabilityKey contextKey

// capabilityFrom returns the capability resolved by the middleware.
func capabilityFrom(ctx context.Context) (Capability, bool) {
	c, ok := ctx.Value(capabilityKey).(Capability)
	return c, ok
}

// resolveCode maps a shared-secret code to a capability. The admin code is
// checked first, then user codes. Unknown codes report ErrNotFound.
func (h *Handler) resolveCode(ctx context.Context, code string) (Capability, leave.User, error) {
	if code == "" {
		return Capability{}, leave.User{}, leave.ErrNotFound
	}
	cfg, err := h.Store.GetConfig(ctx)
	if err != nil && !leave.IsNotFound(err) {
		return Capability{}, leave.User{}, err
	}
	if cfg.AdminCode != "" && code == cfg.AdminCode {
		return Capability{Role: RoleAdmin}, leave.User{}, nil
	}
	u, err := h.Store.GetUserByCode(ctx, code)
	if err != nil {
		return Capability{}, leave.User{}, err
	}
	return Capability{Role: RoleEmployee, UserID: u.ID}, u, nil
}

// withCapability resolves the X-Access-Code header and stores the result in
// the request context. Requests without a valid code get 401.
func (h *Handler) withCapability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.Header.Get("X-Access-Code")
		cap, _, err := h.resolveCode(r.Context(), code)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unknown access code", nil)
			return
		}
		ctx := context.WithValue(r.Context(), capabilityKey, cap)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects non-admin capabilities with 403.
func requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cap, ok := capabilityFrom(r.Context())
		if !ok || !cap.IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin capability required", nil)
			return
		}
		next(w, r)
	}
}
