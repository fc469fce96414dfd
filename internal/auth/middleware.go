package auth

import (
	"complaintdesk/backend/internal/models"
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RoleResolver looks up the role of a user.
type RoleResolver interface {
	GetRole(ctx context.Context, userID string) (models.Role, error)
}

// Authenticator resolves a session token to an Identity.
type Authenticator struct {
	Verifier *TokenVerifier
	Roles    RoleResolver
}

func NewAuthenticator(v *TokenVerifier, roles RoleResolver) *Authenticator {
	return &Authenticator{Verifier: v, Roles: roles}
}

// Authenticate verifies the token and looks up the caller's role.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	userID, err := a.Verifier.Verify(token)
	if err != nil {
		return Identity{}, err
	}
	role, err := a.Roles.GetRole(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: userID, Role: role}, nil
}

// bearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter for WebSocket upgrades from browsers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return c.Query("access_token")
}

// Middleware rejects requests without a valid session and attaches the Identity.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}

		id, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
				return
			}
			log.Printf("ERROR: Failed to resolve role: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication error"})
			return
		}

		c.Request = c.Request.WithContext(ContextWithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireAdmin aborts unless the authenticated caller is an administrator.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		if !id.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator access required"})
			return
		}
		c.Next()
	}
}
