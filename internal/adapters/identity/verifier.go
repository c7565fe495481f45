package identity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chronoplan/internal/domain"
)

const verifyPurpose = "verify_email"

// ErrInvalidToken возвращается для просроченных или поддельных ссылок подтверждения.
var ErrInvalidToken = errors.New("identity: invalid verification token")

type verificationClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Verifier подписывает и проверяет токены ссылок подтверждения email.
type Verifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewVerifier создаёт подписчика токенов HS256.
func NewVerifier(secret string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Verifier{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue выпускает токен для uid.
func (v *Verifier) Issue(uid, email string) (string, error) {
	now := v.now()
	claims := verificationClaims{
		Email:   email,
		Purpose: verifyPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign verification token: %w", err)
	}
	return token, nil
}

// Parse проверяет токен и возвращает uid.
func (v *Verifier) Parse(token string) (string, error) {
	claims := &verificationClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Purpose != verifyPurpose || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// VerificationLink строит ссылку, которую получает пользователь в письме.
func VerificationLink(baseURL, token string, cfg domain.VerificationConfig) string {
	q := url.Values{}
	q.Set("token", token)
	if cfg.ContinueURL != "" {
		q.Set("continueUrl", cfg.ContinueURL)
	}
	if cfg.HandleInApp {
		q.Set("handleCodeInApp", "true")
	}
	if cfg.PackageName != "" {
		q.Set("apn", cfg.PackageName)
	}
	if cfg.MinimumVersion != "" {
		q.Set("amv", cfg.MinimumVersion)
	}
	return strings.TrimRight(baseURL, "/") + "/auth/verify?" + q.Encode()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(op, email, password string) error {
	if !domain.ValidEmail(email) {
		return domain.E(domain.KindInvalidEmail, op, nil)
	}
	if len(password) < domain.MinPasswordLength {
		return domain.E(domain.KindWeakPassword, op, nil)
	}
	return nil
}
