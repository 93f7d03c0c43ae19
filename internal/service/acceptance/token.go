package acceptance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const (
	tokenAudience     = "offer-acceptance"
	defaultTokenTTL   = 14 * 24 * time.Hour
	minimumSecretSize = 16
)

// ErrSecretTooShort — секрет подписи слишком короткий.
var ErrSecretTooShort = errors.New("acceptance token secret must be at least 16 bytes")

// Claims — полезная нагрузка токена принятия.
type Claims struct {
	OfferID string `json:"offer_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens выпускает и проверяет токены принятия (HS256).
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

var _ domain.AcceptanceTokenVerifier = (*Tokens)(nil)

// NewTokens создаёт сервис токенов. ttl <= 0 означает 14 дней.
func NewTokens(secret string, ttl time.Duration, issuer string) (*Tokens, error) {
	if len(secret) < minimumSecretSize {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue подписывает токен для пары предложение + email клиента.
func (t *Tokens) Issue(offerID, email string) (string, time.Time, error) {
	if offerID == "" {
		return "", time.Time{}, domain.ErrOfferIDRequired
	}
	now := t.now()
	expiresAt := now.Add(t.ttl)

	claims := Claims{
		OfferID: offerID,
		Email:   strings.ToLower(strings.TrimSpace(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   offerID,
			Issuer:    t.issuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign acceptance token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify проверяет подпись, срок и привязку к предложению. Возвращает email из токена.
func (t *Tokens) Verify(token, offerID string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrTokenMissing
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", domain.ErrTokenExpired
		}
		return "", domain.ErrTokenInvalid
	}
	if !parsed.Valid || claims.OfferID == "" || claims.OfferID != offerID {
		return "", domain.ErrTokenInvalid
	}
	return claims.Email, nil
}
