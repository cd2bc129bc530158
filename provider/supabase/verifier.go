package supabase

import (
	"strings"

	"github.com/MicahParks/keyfunc/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/teamblitzer/go-authsync"
)

// Verifier checks access tokens issued by the hosted backend, for services
// that accept the client's bearer token instead of trusting it blindly.
// Keys come from the project's JWK Set endpoint and are cached/refreshed
// by the keyfunc layer.
type Verifier struct {
	jwks *keyfunc.JWKS
}

// NewVerifier fetches the project's JWK Set and returns a verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, goerrors.New("backend base URL is required", goerrors.CategoryBadInput)
	}

	url := strings.TrimSuffix(cfg.BaseURL, "/") + "/auth/v1/.well-known/jwks.json"
	jwks, err := keyfunc.Get(url, keyfunc.Options{})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load JWK set")
	}
	return &Verifier{jwks: jwks}, nil
}

// NewVerifierWithKeys builds a verifier over pre-shared keys, for projects
// still on symmetric signing and for tests.
func NewVerifierWithKeys(given map[string]keyfunc.GivenKey) *Verifier {
	return &Verifier{jwks: keyfunc.NewGiven(given)}
}

// Verify validates the token's signature and expiry and returns the
// identity it was issued to.
func (v *Verifier) Verify(token string) (authsync.Identity, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.jwks.Keyfunc)
	if err != nil || !parsed.Valid {
		return authsync.Identity{}, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
			WithCode(goerrors.CodeUnauthorized)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authsync.Identity{}, goerrors.Wrap(err, goerrors.CategoryAuth, "access token carries a malformed subject").
			WithCode(goerrors.CodeUnauthorized)
	}

	return authsync.Identity{ID: id, Email: claims.Email}, nil
}
