// Package auth 单用户面板登录：bcrypt 校验密码，签发 HS256 JWT。
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

const issuer = "bingx-dashboard"

// Claims JWT 载荷
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager 持有登录凭证与签名密钥，构造后只读
type Manager struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewManager passwordHash 为 bcrypt 哈希
func NewManager(username, passwordHash, secret string, ttl time.Duration) (*Manager, error) {
	if username == "" || passwordHash == "" || secret == "" {
		return nil, errors.New("auth: username, password hash and jwt secret are required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("auth: password hash is not bcrypt: %w", err)
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		username:     username,
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// HashPassword 生成 bcrypt 哈希，写入配置 auth.password_hash
func HashPassword(password string) (string, error) {
	if len(password) < 8 || len(password) > 72 {
		return "", errors.New("password length must be 8-72")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// Login 校验用户名密码，成功返回 token 与过期时间
func (m *Manager) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1
	pwErr := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password))
	if !userOK || pwErr != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return m.Issue(username)
}

// Issue 签发 token
func (m *Manager) Issue(username string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// Validate 校验 token 并返回载荷
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Username != m.username {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
