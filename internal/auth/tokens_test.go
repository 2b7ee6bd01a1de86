package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/labelsync/internal/errors"
)

const testKey = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	s, err := NewTokenService(testKey, 15*time.Minute)
	require.NoError(t, err)
	return s
}

func TestIssueAndVerify(t *testing.T) {
	s := newTestService(t)

	token, exp, err := s.IssueAccessToken(Subject{UserID: "U1", Email: "u1@example.com", IsAdmin: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "v4.local."))
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	claims, err := s.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.UserID)
	assert.Equal(t, "U1", claims.Subject)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
	assert.NotEmpty(t, claims.TokenID)
}

func TestVerify_NonAdminByDefault(t *testing.T) {
	s := newTestService(t)

	token, _, err := s.IssueAccessToken(Subject{UserID: "U1"})
	require.NoError(t, err)

	claims, err := s.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.False(t, claims.IsAdmin)
	assert.Empty(t, claims.Email)
}

func TestVerify_Expired(t *testing.T) {
	s := newTestService(t)
	issued := time.Now().Add(-time.Hour)
	s.now = func() time.Time { return issued }

	token, _, err := s.IssueAccessToken(Subject{UserID: "U1"})
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.VerifyAccessToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)
}

func TestVerify_RejectsGarbageAndForeignKey(t *testing.T) {
	s := newTestService(t)

	_, err := s.VerifyAccessToken("v4.local.not-a-token")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	other, err := NewTokenService(strings.Repeat("ab", 32), time.Minute)
	require.NoError(t, err)
	token, _, err := other.IssueAccessToken(Subject{UserID: "U1"})
	require.NoError(t, err)

	_, err = s.VerifyAccessToken(token)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestIssue_RequiresUserID(t *testing.T) {
	_, _, err := newTestService(t).IssueAccessToken(Subject{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestNewTokenService_BadKey(t *testing.T) {
	_, err := NewTokenService("abcd", time.Minute)
	assert.Error(t, err)

	_, err = NewTokenService(strings.Repeat("zz", 32), time.Minute)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	key, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, key, 64)

	info, err := os.Stat(filepath.Join(dir, KeyFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, key, again, "key is reused across starts")

	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFile), []byte("short"), 0o600))
	_, err = LoadOrGenerateKey(dir)
	assert.Error(t, err)
}
