package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, key *rsa.PrivateKey, c Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &c)
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func accessClaims(id int64, roles ...string) Claims {
	now := time.Now()
	return Claims{
		IdentityID:     id,
		Roles:          roles,
		SessionPurpose: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			Audience:  []string{"leadflow"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestVerifyAccessToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewVerifier(&key.PublicKey, "identity", "leadflow")

	claims, err := v.VerifyAccessToken(sign(t, key, accessClaims(7, "tl")))
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.IdentityID)
	assert.True(t, claims.HasRole("tl"))
	assert.True(t, claims.HasAnyRole("admin", "tl"))
	assert.False(t, claims.HasRole("admin"))

	t.Run("wrong issuer", func(t *testing.T) {
		c := accessClaims(7)
		c.Issuer = "elsewhere"
		_, err := v.VerifyAccessToken(sign(t, key, c))
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := accessClaims(7)
		c.Audience = []string{"billing"}
		_, err := v.VerifyAccessToken(sign(t, key, c))
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		c := accessClaims(7)
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.VerifyAccessToken(sign(t, key, c))
		assert.Error(t, err)
	})

	t.Run("refresh token", func(t *testing.T) {
		c := accessClaims(7)
		c.SessionPurpose = "refresh"
		_, err := v.VerifyAccessToken(sign(t, key, c))
		assert.Error(t, err)
	})

	t.Run("temporary token", func(t *testing.T) {
		c := accessClaims(7)
		c.IsTemp = true
		_, err := v.VerifyAccessToken(sign(t, key, c))
		assert.Error(t, err)
	})

	t.Run("other key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = v.VerifyAccessToken(sign(t, other, accessClaims(7)))
		assert.Error(t, err)
	})

	t.Run("hmac token", func(t *testing.T) {
		c := accessClaims(7)
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &c).SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = v.VerifyAccessToken(s)
		assert.Error(t, err)
	})
}

func TestLoadVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := LoadVerifier(Config{PubPath: path, Issuer: "identity", Audience: "leadflow"})
	require.NoError(t, err)
	_, err = v.VerifyAccessToken(sign(t, key, accessClaims(3, "user")))
	require.NoError(t, err)

	_, err = LoadVerifier(Config{PubPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)

	_, err = ParseRSAPublicKey([]byte("not pem"))
	assert.Error(t, err)
}
