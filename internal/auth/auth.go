// Package auth проверяет bearer-токены администраторов.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	adminAudience = "offers-admin"
	bearerPrefix  = "bearer "
	// AnonymousActor используется, когда проверка отключена.
	AnonymousActor = "admin:anonymous"
)

var (
	// ErrUnauthenticated — токен отсутствует или не прошёл проверку.
	ErrUnauthenticated = errors.New("missing or invalid bearer token")
	// ErrForbidden — у токена нет роли администратора.
	ErrForbidden = errors.New("admin role required")
)

// Claims — полезная нагрузка административного токена.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Principal — проверенный администратор.
type Principal struct {
	Subject string
	Role    string
}

// Actor возвращает идентификатор для записей истории.
func (p Principal) Actor() string {
	if p.Subject == "" {
		return AnonymousActor
	}
	return "admin:" + p.Subject
}

// Authenticator проверяет HS256-токены. Пустой секрет отключает проверку.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator создаёт проверку токенов.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Enabled сообщает, включена ли проверка.
func (a *Authenticator) Enabled() bool {
	return a != nil && len(a.secret) > 0
}

// Issue выпускает административный токен (для утилит и тестов).
func (a *Authenticator) Issue(subject string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{adminAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate разбирает значение заголовка Authorization.
func (a *Authenticator) Authenticate(header string) (Principal, error) {
	if !a.Enabled() {
		return Principal{}, nil
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return Principal{}, ErrUnauthenticated
	}
	raw := strings.TrimSpace(header[len(bearerPrefix):])
	if raw == "" {
		return Principal{}, ErrUnauthenticated
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(adminAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrUnauthenticated
	}
	if claims.Role != "admin" {
		return Principal{}, ErrForbidden
	}
	return Principal{Subject: claims.Subject, Role: claims.Role}, nil
}

type principalKey struct{}

// WithPrincipal кладёт администратора в контекст.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// ActorFrom возвращает актора из контекста или AnonymousActor.
func ActorFrom(ctx context.Context) string {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p.Actor()
}
