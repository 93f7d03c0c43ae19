package acceptance

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const testSecret = "0123456789abcdef-acceptance"

func TestNewTokens_RejectsShortSecret(t *testing.T) {
	_, err := NewTokens("short", time.Hour, "offers")
	require.ErrorIs(t, err, ErrSecretTooShort)
}

func TestTokens_IssueVerify(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Hour, "offers")
	require.NoError(t, err)

	signed, expiresAt, err := tokens.Issue("offer-1", " Jane@Example.com ")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	email, err := tokens.Verify(signed, "offer-1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", email)

	_, err = tokens.Verify(signed, "offer-2")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	_, err = tokens.Verify("", "offer-1")
	assert.ErrorIs(t, err, domain.ErrTokenMissing)
}

func TestTokens_Expired(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Minute, "offers")
	require.NoError(t, err)
	issuedAt := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issuedAt }

	signed, _, err := tokens.Issue("offer-1", "jane@example.com")
	require.NoError(t, err)

	tokens.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = tokens.Verify(signed, "offer-1")
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestTokens_RejectsForeignSignatureAndAlgorithm(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Hour, "offers")
	require.NoError(t, err)
	other, err := NewTokens("another-secret-of-enough-size", time.Hour, "offers")
	require.NoError(t, err)

	foreign, _, err := other.Issue("offer-1", "jane@example.com")
	require.NoError(t, err)
	_, err = tokens.Verify(foreign, "offer-1")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		OfferID: "offer-1",
		Email:   "jane@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Verify(unsigned, "offer-1")
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
