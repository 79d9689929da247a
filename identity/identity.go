package identity

import (
	"context"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
)

// Identity is the already-authenticated user the core acts for. It is immutable
// for the lifetime of a login session.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"name,omitempty"`
	AvatarRef   string `json:"image,omitempty"`
}

// Name returns the display name, falling back to the id.
func (i Identity) Name() string {
	if strings.TrimSpace(i.DisplayName) != "" {
		return i.DisplayName
	}
	return i.ID
}

// Resolver extracts the caller identity from an HTTP request.
type Resolver interface {
	Resolve(r *http.Request) (*Identity, error)
}

// HeaderResolver trusts identity headers set by an authenticating proxy.
type HeaderResolver struct{}

const (
	HeaderUserID     = "X-User-ID"
	HeaderUserName   = "X-User-Name"
	HeaderUserAvatar = "X-User-Avatar"
)

func (HeaderResolver) Resolve(r *http.Request) (*Identity, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if id == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	return &Identity{
		ID:          id,
		DisplayName: r.Header.Get(HeaderUserName),
		AvatarRef:   r.Header.Get(HeaderUserAvatar),
	}, nil
}

// OIDCResolver verifies a bearer ID token issued by the login provider.
type OIDCResolver struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCResolver discovers the issuer's keys and builds a verifier for clientID.
func NewOIDCResolver(ctx context.Context, issuer, clientID string) (*OIDCResolver, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, apperrors.Wrapf(err, "oidc provider %s", issuer)
	}
	return NewOIDCResolverWithVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func NewOIDCResolverWithVerifier(v *oidc.IDTokenVerifier) *OIDCResolver {
	return &OIDCResolver{verifier: v}
}

type profileClaims struct {
	Name     string `json:"name"`
	Username string `json:"preferred_username"`
	Picture  string `json:"picture"`
}

func (o *OIDCResolver) Resolve(r *http.Request) (*Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, apperrors.ErrMissingIdentity
	}
	idToken, err := o.verifier.Verify(r.Context(), raw)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMissingIdentity, "verify id token: %v", err)
	}
	var claims profileClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMissingIdentity, "id token claims: %v", err)
	}
	name := claims.Name
	if name == "" {
		name = claims.Username
	}
	return &Identity{ID: idToken.Subject, DisplayName: name, AvatarRef: claims.Picture}, nil
}

// ChainResolver returns the first identity any resolver produces.
type ChainResolver []Resolver

func (c ChainResolver) Resolve(r *http.Request) (*Identity, error) {
	for _, res := range c {
		if id, err := res.Resolve(r); err == nil && id != nil {
			return id, nil
		}
	}
	return nil, apperrors.ErrMissingIdentity
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
