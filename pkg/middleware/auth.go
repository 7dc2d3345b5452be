package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/poornimax/crushline/pkg/jwt"
	"github.com/poornimax/crushline/pkg/response"
)

const (
	UserIDKey     = "user_id"
	UsernameKey   = "username"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "

	// AccessTokenQuery carries the token for WebSocket upgrades, where
	// browsers cannot set headers.
	AccessTokenQuery = "access_token"
)

var (
	ErrMissingToken = errors.New("missing authorization token")
	ErrBadFormat    = errors.New("invalid authorization format")
)

// TokenValidator validates an access token.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware validates JWT access tokens locally.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// Authenticate resolves the caller from the Authorization header or the
// access_token query parameter.
func (m *AuthMiddleware) Authenticate(c *gin.Context) (*jwt.Claims, error) {
	token, err := extractToken(c)
	if err != nil {
		return nil, err
	}
	return m.validator.ValidateToken(token)
}

// RequireAuth returns a Gin middleware that rejects unauthenticated requests.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.Authenticate(c)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)

		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if authHeader == "" {
		if q := c.Query(AccessTokenQuery); q != "" {
			return q, nil
		}
		return "", ErrMissingToken
	}

	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", ErrBadFormat
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	return c.GetString(UsernameKey)
}
