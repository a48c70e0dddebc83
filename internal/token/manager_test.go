package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"blog-manager/internal/domain"
)

func testUser() *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		Email:    "author@example.com",
		Role:     domain.RoleAuthor,
		IsActive: true,
	}
}

func TestIssuePairAndParse(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute, 168*time.Hour)
	user := testUser()

	pair, err := m.IssuePair(user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	require.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	access, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), access.Subject)
	require.Equal(t, string(domain.RoleAuthor), access.Role)
	require.NotEmpty(t, access.ID)

	refresh, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), refresh.Subject)
	require.NotEqual(t, access.ID, refresh.ID)
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute, 168*time.Hour)

	pair, err := m.IssuePair(testUser())
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = m.ParseRefresh(pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute, 168*time.Hour)
	other := NewManager("different-secret", 15*time.Minute, 168*time.Hour)

	pair, err := m.IssuePair(testUser())
	require.NoError(t, err)

	_, err = other.ParseAccess(pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestParseRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", -time.Minute, -time.Minute)

	pair, err := m.IssuePair(testUser())
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
	_, err = m.ParseRefresh(pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestParseRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute, 168*time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := m.ParseAccess(raw)
		require.ErrorIs(t, err, domain.ErrTokenInvalid)
	}
}

func TestParseRejectsUnsignedAlgorithm(t *testing.T) {
	m := NewManager("test-secret", 15*time.Minute, 168*time.Hour)

	// header {"alg":"none","typ":"JWT"} with an empty signature
	raw := "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ4IiwidHlwIjoiYWNjZXNzIn0."
	_, err := m.ParseAccess(raw)
	require.ErrorIs(t, err, domain.ErrTokenInvalid)
}
