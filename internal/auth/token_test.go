package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/bountyboard/internal/models"
)

func TestGenerateAndParse(t *testing.T) {
	tm := NewTokenManager("secret", "bountyboard", time.Hour)
	token, err := tm.Generate(models.User{ID: 42, Username: "ada", Role: models.RoleFreelancer})
	require.NoError(t, err)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, models.RoleFreelancer, claims.Role)
}

func TestParseRejectsForeignTokens(t *testing.T) {
	issued, err := NewTokenManager("secret", "bountyboard", time.Hour).Generate(models.User{ID: 1})
	require.NoError(t, err)

	_, err = NewTokenManager("other", "bountyboard", time.Hour).Parse(issued)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("secret", "someone-else", time.Hour).Parse(issued)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("secret", "bountyboard", time.Hour).Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", "bountyboard", -time.Minute)
	token, err := tm.Generate(models.User{ID: 7})
	require.NoError(t, err)

	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "battery staple"))
}

func TestClaimsContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), Claims{UserID: 3, Role: models.RoleClient})
	c, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), c.UserID)
}
