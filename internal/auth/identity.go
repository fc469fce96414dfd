package auth

import (
	"complaintdesk/backend/internal/models"
	"context"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the caller may triage any complaint.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// CanView reports whether the caller may read a complaint owned by ownerID.
func (i Identity) CanView(ownerID string) bool {
	return i.IsAdmin() || (i.UserID != "" && i.UserID == ownerID)
}

type identityContextKey struct{}

// ContextWithIdentity attaches the identity to the context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity attached by the middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
