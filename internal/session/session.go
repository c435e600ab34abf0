package session

import (
	"context"
)

// Identity is the authenticated principal as asserted by the upstream auth
// layer. It carries no tenant information; that comes from the resolved
// membership only.
type Identity struct {
	ID    string
	Email string
	Name  string
}

// Session is the resolved acting context for a request. TenantID is the sole
// scoping key for every query issued on behalf of the session and is never
// taken from client input.
type Session struct {
	Identity     Identity
	MembershipID string
	TenantID     string
	Role         Role
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}

func (s *Session) Can(c Capability) bool {
	if s == nil {
		return false
	}
	for _, have := range s.Role.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}
