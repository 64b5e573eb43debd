// Пакет auth — выпуск и проверка сессионных токенов HS256,
// хэширование паролей argon2id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ошибки проверки учётных данных запроса.
var (
	// ErrConfiguration — секрет подписи не настроен. Отвечаем 500.
	ErrConfiguration = errors.New("секрет подписи токенов не настроен")
	// ErrMissingCredential — заголовок Authorization отсутствует или не Bearer. Отвечаем 401.
	ErrMissingCredential = errors.New("токен не передан")
	// ErrInvalidCredential — подпись, срок действия или алгоритм не прошли проверку. Отвечаем 401.
	ErrInvalidCredential = errors.New("токен недействителен или просрочен")
)

// Claims — содержимое сессионного токена.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// SecretResolver возвращает текущий секрет подписи.
// Пустой результат означает, что секрет не настроен.
type SecretResolver func() []byte

// Verifier проверяет токены HS256.
type Verifier struct {
	secret SecretResolver
	leeway time.Duration
}

// NewVerifier создаёт проверку токенов.
// leeway — допустимое отклонение часов (PORTAL_JWT_LEEWAY).
func NewVerifier(secret SecretResolver, leeway time.Duration) *Verifier {
	return &Verifier{secret: secret, leeway: leeway}
}

// Configured сообщает, задан ли секрет.
func (v *Verifier) Configured() bool {
	return v.secret != nil && len(v.secret()) > 0
}

// Verify проверяет подпись, алгоритм и срок действия токена.
// Ошибки оборачивают ErrConfiguration или ErrInvalidCredential.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if !v.Configured() {
		return nil, ErrConfiguration
	}
	secret := v.secret()

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !token.Valid {
		return nil, ErrInvalidCredential
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", ErrInvalidCredential)
	}
	return claims, nil
}

// Issuer выпускает токены HS256.
type Issuer struct {
	secret SecretResolver
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer создаёт выпуск токенов с указанным временем жизни.
func NewIssuer(secret SecretResolver, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}
}

// Configured сообщает, задан ли секрет подписи.
func (i *Issuer) Configured() bool {
	return i.secret != nil && len(i.secret()) > 0
}

// Issue подписывает токен {sub, email, role, iat, exp}.
// Возвращает токен и момент истечения.
func (i *Issuer) Issue(subject, email, role string) (string, time.Time, error) {
	if !i.Configured() {
		return "", time.Time{}, ErrConfiguration
	}

	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}
	return signed, exp, nil
}
