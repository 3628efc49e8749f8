// Package auth guards the mutating API routes with operator tokens signed
// by a shared secret.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"noticeboard/internal/apperr"
)

const (
	RoleOperator = "operator"

	claimsKey = "operator"
)

type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an operator token for subject valid for ttl.
func IssueToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := time.Now()
	claims := &OperatorClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies raw and returns its claims.
func ParseToken(secret []byte, raw string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Role != RoleOperator {
		return nil, fmt.Errorf("token is not an operator token")
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token. With an empty
// secret every request passes.
func Middleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, "Missing or invalid Authorization header")
			return
		}

		claims, err := ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			abort(c, "Invalid token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Operator returns the claims set by Middleware, if any.
func Operator(c *gin.Context) (*OperatorClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*OperatorClaims)
	return claims, ok
}

func abort(c *gin.Context, msg string) {
	err := apperr.Unauthorized(msg)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Message, "kind": err.Kind})
}
