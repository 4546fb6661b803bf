package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewJWTManager("secret", 30*time.Minute)
	subject := uuid.NewString()

	tok, err := m.GenerateToken(subject)
	require.NoError(t, err)

	got, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, subject, got)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	tok, err := NewJWTManager("secret-a", time.Hour).GenerateToken(uuid.NewString())
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	tok, err := m.Issue(uuid.NewString(), time.Minute)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsMissingOrMalformedSubject(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	tok, err := m.Issue("", time.Hour)
	require.NoError(t, err)
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tok, err = m.Issue("not-a-uuid", time.Hour)
	require.NoError(t, err)
	_, err = m.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyRejectsNonHMAC(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := NewJWTManager("secret", time.Hour).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
