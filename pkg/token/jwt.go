// Package token 提供了用于生成和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidCredentials 表示 token 签名无效、已过期或缺少合法的 subject。
var ErrInvalidCredentials = errors.New("invalid credentials")

// JWTManager 负责管理 JWT 的生成和验证。它只持有密钥，是一对无状态的纯函数。
type JWTManager struct {
	secretKey      []byte        // secretKey 用于签名和验证 token 的密钥
	accessTokenDur time.Duration // accessTokenDur 定义了 access token 的默认有效期
	now            func() time.Time
}

// NewJWTManager 创建一个新的 JWTManager 实例。
func NewJWTManager(secret string, accessTokenDur time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:      []byte(secret),
		accessTokenDur: accessTokenDur,
		now:            time.Now,
	}
}

// AccessTokenTTL 返回默认的 access token 有效期。
func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.accessTokenDur
}

// GenerateToken 以默认有效期为 subject 签发 access token。
func (m *JWTManager) GenerateToken(subject string) (string, error) {
	return m.Issue(subject, m.accessTokenDur)
}

// Issue 为 subject 签发一个 HS256 token，过期时间作为 exp 声明写入。
func (m *JWTManager) Issue(subject string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// Verify 验证 token 并返回其中的 subject。
// 签名不匹配、算法不是 HMAC、已过期或 subject 缺失/格式错误时都返回 ErrInvalidCredentials。
func (m *JWTManager) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return "", ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidCredentials)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return "", fmt.Errorf("%w: malformed subject", ErrInvalidCredentials)
	}
	return claims.Subject, nil
}
