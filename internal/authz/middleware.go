// Package authz guards billing routes with permission checks resolved by an
// external authorization service. Session handling and role resolution live
// outside this application; the caller identity arrives in the X-Subject
// header set by the gateway.
package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// SubjectHeader carries the authenticated caller identity.
const SubjectHeader = "X-Subject"

// PermissionSource answers "which operations may this caller perform".
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, subject string) ([]string, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Source PermissionSource
	Logger *slog.Logger
}

// RequireAny ensures the caller holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalize(perms)
	return m.guard(normalized, hasAny)
}

// RequireAll ensures the caller holds every permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalize(perms)
	return m.guard(normalized, hasAll)
}

func (m Middleware) guard(required []string, match func(granted, required []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			subject := strings.TrimSpace(r.Header.Get(SubjectHeader))
			if subject == "" {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Source.EffectivePermissions(r.Context(), subject)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz resolve permissions", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if match(granted, required) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// AllowAll grants every permission; used in development and tests.
type AllowAll struct{}

func (AllowAll) EffectivePermissions(ctx context.Context, subject string) ([]string, error) {
	return []string{"*"}, nil
}

func normalize(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func toSet(granted []string) map[string]struct{} {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	return set
}

func hasAny(granted, required []string) bool {
	set := toSet(granted)
	if _, ok := set["*"]; ok {
		return true
	}
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func hasAll(granted, required []string) bool {
	set := toSet(granted)
	if _, ok := set["*"]; ok {
		return true
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}
