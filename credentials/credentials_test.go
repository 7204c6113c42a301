package credentials_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-chat-client/credentials"
)

func testToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestValidFormat(t *testing.T) {
	t.Run("valid JWT shape", func(t *testing.T) {
		require.True(t, credentials.ValidFormat("eyJhbGc.eyJzdWI.signature"))
	})

	t.Run("signed token", func(t *testing.T) {
		require.True(t, credentials.ValidFormat(testToken(t, time.Now().Add(time.Hour))))
	})

	t.Run("empty token", func(t *testing.T) {
		require.False(t, credentials.ValidFormat(""))
	})

	t.Run("two segments", func(t *testing.T) {
		require.False(t, credentials.ValidFormat("header.payload"))
	})

	t.Run("empty segment", func(t *testing.T) {
		require.False(t, credentials.ValidFormat("header..signature"))
	})

	t.Run("four segments", func(t *testing.T) {
		require.False(t, credentials.ValidFormat("a.b.c.d"))
	})
}

func TestExpiresAt(t *testing.T) {
	t.Run("token with expiry", func(t *testing.T) {
		exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
		got, ok := credentials.ExpiresAt(testToken(t, exp))
		require.True(t, ok)
		require.Equal(t, exp.Unix(), got.Unix())
	})

	t.Run("token without expiry claim", func(t *testing.T) {
		token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{"sub": "user-1"}).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, ok := credentials.ExpiresAt(token)
		require.False(t, ok)
	})

	t.Run("not a token", func(t *testing.T) {
		_, ok := credentials.ExpiresAt("garbage")
		require.False(t, ok)
	})
}
