package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/perfboard/internal/adapters/repository"
	"github.com/okian/perfboard/internal/domain/model"
)

// UserHeader carries the authenticated user's id. It is expected to be set
// by the identity-aware proxy in front of the API.
const UserHeader = "X-User-ID"

// UserStore resolves authenticated ids to accounts.
type UserStore interface {
	GetUser(ctx context.Context, uid string) (model.User, error)
}

type userKey struct{}

// UserFromContext returns the caller attached by the route guard.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(userKey{}).(model.User)
	return u, ok
}

// Guard enforces authentication and roles in front of handlers.
type Guard struct {
	users UserStore
}

// NewGuard creates a route guard backed by users.
func NewGuard(users UserStore) *Guard {
	return &Guard{users: users}
}

// Require admits callers whose account exists and, when role is not empty,
// holds that role. Roles compare case-insensitively.
func (g *Guard) Require(next http.HandlerFunc, role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(UserHeader))
		if uid == "" {
			writeError(w, r, ErrUnauthenticated)
			return
		}
		u, err := g.users.GetUser(r.Context(), uid)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, r, fmt.Errorf("%w: unknown user %q", ErrUnauthenticated, uid))
			return
		case err != nil:
			writeError(w, r, err)
			return
		}
		if role != "" && !strings.EqualFold(u.Role, role) {
			writeError(w, r, fmt.Errorf("%w: requires role %s", ErrForbidden, role))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	}
}

func isAdmin(u model.User) bool {
	return strings.EqualFold(u.Role, model.RoleAdmin)
}

// canRead reports whether the caller may see records of emp.
func canRead(ctx context.Context, emp model.Employee) error {
	u, ok := UserFromContext(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	if isAdmin(u) || (emp.UserID != "" && emp.UserID == u.UID) {
		return nil
	}
	return fmt.Errorf("%w: employee %s belongs to another user", ErrForbidden, emp.ID)
}
