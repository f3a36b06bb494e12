package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/crmportal/crmportal/shared/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid    = errors.New("token is invalid")
	ErrTokenExpired    = errors.New("token is expired")
	ErrTokenWrongClass = errors.New("token has wrong class")
)

type Claims struct {
	jwt.RegisteredClaims
	Email string            `json:"email"`
	Class domain.TokenClass `json:"type"`
}

type classKeys struct {
	secret []byte
	ttl    time.Duration
}

// Codec signs access and refresh tokens with separate HS256 secrets.
type Codec struct {
	keys map[domain.TokenClass]classKeys
	now  func() time.Time
}

func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		keys: map[domain.TokenClass]classKeys{
			domain.AccessToken:  {secret: []byte(accessSecret), ttl: accessTTL},
			domain.RefreshToken: {secret: []byte(refreshSecret), ttl: refreshTTL},
		},
		now: time.Now,
	}
}

func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

func (c *Codec) Issue(userId domain.UserId, email domain.Email, class domain.TokenClass) (domain.Token, error) {
	keys, ok := c.keys[class]
	if !ok {
		return domain.Token{}, fmt.Errorf("unknown token class %q", class)
	}

	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userId,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(keys.ttl)),
		},
		Email: email,
		Class: class,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(keys.secret)
	if err != nil {
		return domain.Token{}, fmt.Errorf("sign %s token: %w", class, err)
	}

	return domain.Token{Value: signed, Id: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the class claim before the signature, so a token of the
// other class reports ErrTokenWrongClass.
func (c *Codec) Verify(token string, expected domain.TokenClass) (domain.Claims, error) {
	keys, ok := c.keys[expected]
	if !ok {
		return domain.Claims{}, fmt.Errorf("%w: unknown class %q", ErrTokenInvalid, expected)
	}

	var unverified Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &unverified); err != nil {
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if unverified.Class != expected {
		return domain.Claims{}, ErrTokenWrongClass
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return keys.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Claims{}, ErrTokenExpired
		}
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return domain.Claims{}, ErrTokenInvalid
	}

	return domain.Claims{
		UserId:    claims.Subject,
		Email:     claims.Email,
		Class:     claims.Class,
		TokenId:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
