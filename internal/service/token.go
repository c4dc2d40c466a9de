package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid 令牌无效
var ErrTokenInvalid = errors.New("token invalid")

// UserJWTClaims 认证方签发的 JWT 声明
type UserJWTClaims struct {
	UserID uint   `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SignUserToken 签发 HS256 令牌，供种子脚本与联调使用
func SignUserToken(secret string, userID uint, role string, expireHours int) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" || userID == 0 {
		return "", time.Time{}, ErrInvalidInput
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(expireHours) * time.Hour)
	claims := UserJWTClaims{
		UserID: userID,
		Role:   strings.ToUpper(strings.TrimSpace(role)),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseUserToken 校验并解析令牌，只接受 HS256
func ParseUserToken(secret, tokenString string) (*UserJWTClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrTokenInvalid
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Join(ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == 0 || strings.TrimSpace(claims.Role) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
