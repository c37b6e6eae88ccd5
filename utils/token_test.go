package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour, 24*time.Hour)

	token, err := issuer.AccessToken(UserClaims{UserID: 7, Username: "alice", IsAdmin: true})
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, &UserClaims{UserID: 7, Username: "alice", IsAdmin: true}, claims)
}

func TestTokenIssuer_RejectsForeignAndExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour, time.Hour)
	other := NewTokenIssuer("other", time.Hour, time.Hour)

	token, err := other.AccessToken(UserClaims{UserID: 1, Username: "bob"})
	require.NoError(t, err)
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := issuer.AccessToken(UserClaims{UserID: 1, Username: "bob"})
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RefreshTokenIsNotAnAccessToken(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour, time.Hour)

	first, expires, err := issuer.RefreshToken(3)
	require.NoError(t, err)
	second, _, err := issuer.RefreshToken(3)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	_, err = issuer.Parse(first)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
