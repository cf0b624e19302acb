package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rationable/api/internal/pkg/jwt"
	"github.com/rationable/api/internal/pkg/response"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "user_email"
)

var errNoToken = errors.New("token is required")

// Auth returns a middleware that requires a valid bearer token.
func Auth(v *jwt.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ValidateToken(v, extractToken(c))
		if err != nil {
			response.Unauthorized(c)
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the user ID if a valid token is present, but does not block the request.
func OptionalAuth(v *jwt.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := ValidateToken(v, extractToken(c)); err == nil {
			setClaims(c, claims)
		}
		c.Next()
	}
}

// ValidateToken verifies a raw bearer token and returns its claims.
func ValidateToken(v *jwt.Verifier, rawToken string) (*jwt.Claims, error) {
	token := NormalizeToken(rawToken)
	if token == "" {
		return nil, errNoToken
	}
	return v.Parse(token)
}

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ContextKeyUserID, claims.UserID())
	if claims.Email != "" {
		c.Set(ContextKeyEmail, claims.Email)
	}
}

// CurrentUserID extracts the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUserID)
	id, _ := v.(string)
	return id
}

// CurrentEmail extracts the authenticated user's email from context.
func CurrentEmail(c *gin.Context) string {
	v, _ := c.Get(ContextKeyEmail)
	email, _ := v.(string)
	return email
}

// IsAuthenticated returns true if the request has a valid auth token.
func IsAuthenticated(c *gin.Context) bool {
	return CurrentUserID(c) != ""
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return NormalizeToken(auth)
	}
	// EventSource cannot set headers.
	return NormalizeToken(c.Query("token"))
}

// NormalizeToken trims spaces and strips optional Bearer prefix.
func NormalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
