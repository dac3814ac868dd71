package middleware

import (
	"context"
	"errors"

	"attendance/internal/apperr"
	"attendance/internal/identity"
	"attendance/internal/model"

	"github.com/gin-gonic/gin"
)

// Gin context keys set by the auth middleware
const (
	identityKey = "identity"
	adminKey    = "adminUser"
)

// AdminResolver re-reads the caller's role from the directory
type AdminResolver interface {
	RequireAdmin(ctx context.Context, subjectID string) (*model.User, error)
}

// RequireSession validates the session token from the access_token cookie or the
// Authorization header and stores the resolved identity in the context.
func RequireSession(auth identity.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := identity.TokenFromRequest(c.Request)
		if token == "" {
			AbortWithError(c, apperr.Unauthenticated("authorization is missing"))
			return
		}

		id, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, identity.ErrInvalidToken) {
				// The provider could not be reached, that is not the caller's fault
				AbortWithError(c, apperr.Upstream(err, "failed to verify session"))
				return
			}
			AbortWithError(c, apperr.Unauthenticated("invalid or expired session"))
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin must run after RequireSession. The role is never taken from the token.
func RequireAdmin(admins AdminResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			AbortWithError(c, apperr.Unauthenticated("authorization is missing"))
			return
		}

		user, err := admins.RequireAdmin(c.Request.Context(), id.SubjectID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(adminKey, user)
		c.Next()
	}
}

// IdentityFrom returns the identity stored by RequireSession.
func IdentityFrom(c *gin.Context) (*identity.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*identity.Identity)
	return id, ok && id != nil
}

// SubjectID is the authenticated subject, empty outside RequireSession.
func SubjectID(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return id.SubjectID
	}
	return ""
}

// AdminFrom returns the directory user loaded by RequireAdmin.
func AdminFrom(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(adminKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok
}
