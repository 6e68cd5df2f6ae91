package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTer() *JWTer {
	return &JWTer{
		Secret:   []byte("test-secret"),
		Issuer:   "go-user-admin",
		Audience: "go-user-admin-clients",
		TTL:      time.Hour,
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	j := newTestJWTer()

	token, err := j.Issue("42", "a@b.c", []string{"User", "Admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := j.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UID)
	assert.Equal(t, "a@b.c", claims.Name)
	assert.Equal(t, "a@b.c", claims.Subject)
	assert.Equal(t, []string{"User", "Admin"}, claims.Roles)
	assert.True(t, claims.HasRole("Admin"))
	assert.False(t, claims.HasRole("Root"))
}

func TestParseRejectsWrongSecret(t *testing.T) {
	j := newTestJWTer()
	token, err := j.Issue("42", "a@b.c", nil)
	require.NoError(t, err)

	other := newTestJWTer()
	other.Secret = []byte("different-secret")
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsWrongAudience(t *testing.T) {
	j := newTestJWTer()
	token, err := j.Issue("42", "a@b.c", nil)
	require.NoError(t, err)

	other := newTestJWTer()
	other.Audience = "someone-else"
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	j := newTestJWTer()
	j.TTL = -2 * time.Hour // beyond the parse leeway
	token, err := j.Issue("42", "a@b.c", nil)
	require.NoError(t, err)

	_, err = j.Parse(token)
	assert.Error(t, err)
}
