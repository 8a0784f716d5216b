package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nomanqadri34/vcx-mart-sub002/auth"
	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

const (
	TokenKey       = "token"
	TokenExpiryKey = "tokenExp"
)

// Blacklist answers whether a bearer token was revoked on logout.
type Blacklist interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate requires a valid, non-revoked bearer token and stores the
// caller's id and role on the context.
func Authenticate(tm *auth.TokenManager, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			logger.Security(c, "auth.token.missing", nil)
			response.Unauthorized(c, "Token required")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		revoked, err := bl.IsRevoked(ctx, tokenString)
		if err != nil {
			logger.Error(c, "auth.blacklist.lookup", err, nil)
			response.InternalError(c)
			return
		}
		if revoked {
			logger.Security(c, "auth.token.revoked", nil)
			response.Unauthorized(c, "Token has been revoked")
			return
		}

		claims, err := tm.Parse(tokenString)
		if err != nil {
			logger.Security(c, "auth.token.invalid", nil)
			response.Unauthorized(c, "Invalid or expired token")
			return
		}

		setClaims(c, tokenString, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through untouched.
func OptionalAuth(tm *auth.TokenManager, bl Blacklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.Next()
			return
		}
		claims, err := tm.Parse(tokenString)
		if err != nil {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if revoked, err := bl.IsRevoked(ctx, tokenString); err == nil && !revoked {
			setClaims(c, tokenString, claims)
		}
		c.Next()
	}
}

func setClaims(c *gin.Context, tokenString string, claims *auth.Claims) {
	c.Set(logger.UserIDKey, claims.UserID)
	c.Set(logger.RoleKey, claims.Role)
	c.Set(TokenKey, tokenString)
	if claims.ExpiresAt != nil {
		c.Set(TokenExpiryKey, claims.ExpiresAt.Time)
	}
}

// RequireRoles must run after Authenticate.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(logger.RoleKey)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		logger.Security(c, "access.denied", map[string]any{"role": role, "required": roles})
		response.Forbidden(c, "Access denied")
	}
}

// UserID returns the authenticated caller's id, if any.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(logger.UserIDKey))
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func Role(c *gin.Context) string { return c.GetString(logger.RoleKey) }
