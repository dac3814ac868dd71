package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

type oidcClaims struct {
	Sub     string `json:"sub,omitempty"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// OIDCAuthenticator verifies ID tokens issued by an OpenID Connect provider.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCAuthenticator discovers the provider at issuer and verifies tokens for clientID.
func NewOIDCAuthenticator(ctx context.Context, issuer, clientID string) (*OIDCAuthenticator, error) {
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}
	return &OIDCAuthenticator{verifier: p.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	idTok, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	var c oidcClaims
	if err := idTok.Claims(&c); err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return &Identity{
		SubjectID:   idTok.Subject,
		Email:       c.Email,
		DisplayName: displayNameOr(c.Name, c.Email),
		AvatarURL:   c.Picture,
	}, nil
}
