package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken   = errors.New("security: invalid token")
	ErrSubjectMissing = errors.New("security: token subject is missing")
)

// TokenService verifies HS256 bearer tokens issued by the marketplace
// identity service. Sign exists for local tooling and tests.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer, now: time.Now}
}

func (s *TokenService) Sign(userID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify returns the subject (user id) of a valid token.
func (s *TokenService) Verify(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrSubjectMissing
	}
	return sub, nil
}
