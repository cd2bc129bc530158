package supabase

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/teamblitzer/go-authsync"
)

// tokenClaims are the claims we read out of the backend's access token.
// The token is the backend's own statement about the session it just
// issued, so there is nothing to verify locally; signature checks belong
// to the services that accept the token.
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func parseAccessToken(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse access token")
	}
	return claims, nil
}

// identityFromAccessToken recovers the identity from the token's sub and
// email claims when the token response carries no user object.
func identityFromAccessToken(token string) (authsync.Identity, error) {
	claims, err := parseAccessToken(token)
	if err != nil {
		return authsync.Identity{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authsync.Identity{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "access token carries a malformed subject")
	}
	return authsync.Identity{ID: id, Email: claims.Email}, nil
}

// expiryFromAccessToken reads the exp claim, nil when absent or unreadable.
func expiryFromAccessToken(token string) *time.Time {
	claims, err := parseAccessToken(token)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}
	t := claims.ExpiresAt.Time
	return &t
}
