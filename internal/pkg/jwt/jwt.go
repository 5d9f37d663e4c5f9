package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

// Claims 令牌声明；TenantID 为空表示个人用户
type Claims struct {
	UserID   int64  `json:"user_id"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken 签发个人用户令牌
func GenerateToken(userID int64, secret string, expireHours int) (string, error) {
	return GenerateTenantToken(userID, "", secret, expireHours)
}

// GenerateTenantToken 签发带租户的令牌
func GenerateTenantToken(userID int64, tenantID, secret string, expireHours int) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken 校验签名与有效期，只接受 HS256
func ParseToken(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
