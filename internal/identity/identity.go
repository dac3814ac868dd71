// Package identity resolves an inbound session token to the identity provider's subject.
//
// Only SubjectID is trusted for authorization; profile fields are used for directory sync.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// AccessTokenCookie carries the session token for browser clients.
const AccessTokenCookie = "access_token"

// ErrInvalidToken is returned for missing, malformed, expired or badly signed tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Identity is what the identity provider tells us about the caller.
type Identity struct {
	SubjectID   string `json:"subjectId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Authenticator verifies a raw session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// TokenFromRequest reads the session token from the access_token cookie, falling back to
// an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// displayNameOr falls back to the local part of the email when the provider sends no name.
func displayNameOr(name, email string) string {
	if name != "" {
		return name
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
