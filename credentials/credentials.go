package credentials

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Pair is the access/refresh token tuple. The two tokens are only ever
// persisted together, and only after the access token passes ValidFormat.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// ValidFormat checks the structural shape of an access token: three
// dot-separated non-empty segments. The client never verifies signatures;
// tokens are opaque beyond this check and the exp claim.
func ValidFormat(token string) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
	}
	return true
}

// ExpiresAt extracts the exp claim from an access token without verifying
// the signature. Returns false when the token carries no parsable expiry.
func ExpiresAt(token string) (time.Time, bool) {
	unverified, _, err := jwtlib.NewParser().ParseUnverified(token, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	claims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
