package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
)

var (
	caller    = domain.MustParseAddress("0xa11ce")
	packageID = domain.MustParseObjectID("0x5ea1")
)

func newService(now time.Time) *JWTService {
	s := NewJWTService("test-signing-key", "test-issuer", "test-audience")
	s.now = func() time.Time { return now }
	return s
}

func Test_GenerateCallerToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newService(now)

	token, err := s.GenerateCallerToken(caller, packageID, now.Add(10*time.Minute))
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, caller.String(), claims.Subject)
	assert.Equal(t, packageID.String(), claims.PackageID)
	assert.NotEmpty(t, claims.ID)

	caller2, err := NewCallerValidator(s).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, caller, caller2.Address)
	assert.Equal(t, claims.ID, caller2.TokenID)
}

func Test_GenerateCallerTokenRefusesPastExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err := newService(now).GenerateCallerToken(caller, packageID, now)
	assert.Error(t, err)
}

func Test_ValidateToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := newService(now)
	token, err := s.GenerateCallerToken(caller, packageID, now.Add(time.Minute))
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		_, err := newService(now.Add(2 * time.Minute)).ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewJWTService("another-key", "test-issuer", "test-audience")
		other.now = s.now
		_, err := other.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong audience", func(t *testing.T) {
		other := NewJWTService("test-signing-key", "test-issuer", "elsewhere")
		other.now = s.now
		_, err := other.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken("not.a.token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
