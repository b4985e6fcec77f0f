package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the only role allowed to mint agent credentials
const RoleOperator = "operator"

// ErrEmptySecret is returned when signing or validating without a secret
var ErrEmptySecret = errors.New("jwt secret is empty")

// JWTClaims represents the claims in an operator token
type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateOperatorToken issues an HS256 operator token valid for ttl
func GenerateOperatorToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	now := time.Now()
	claims := &JWTClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(secret []byte, tokenString string) (*JWTClaims, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
