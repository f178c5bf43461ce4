// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"leadflow-service/internal/pkg/jwt"
	"leadflow-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenVerifier checks bearer access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// TokenBlacklist reports revoked token ids.
type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

type AuthMiddleware struct {
	verifier  TokenVerifier
	blacklist TokenBlacklist
	logger    *zap.Logger
}

func NewAuthMiddleware(verifier TokenVerifier, blacklist TokenBlacklist, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		verifier:  verifier,
		blacklist: blacklist,
		logger:    logger,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		if m.blacklist != nil && claims.ID != "" {
			revoked, err := m.blacklist.IsTokenBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				m.logger.Error("blacklist check failed", zap.Error(err))
				response.Error(c, http.StatusServiceUnavailable, "unable to validate session", nil)
				return
			}
			if revoked {
				response.Error(c, http.StatusUnauthorized, "token has been revoked", nil)
				return
			}
		}

		c.Set("identity_id", claims.IdentityID)
		c.Set("jti", claims.ID)
		c.Set("roles", claims.Roles)
		c.Set("device", claims.Device)

		c.Next()
	}
}

// RequireRole middleware that requires user to have at least one of the specified roles
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoles, exists := c.Get("roles")
		if !exists {
			response.Error(c, http.StatusForbidden, "no roles found - authentication required", nil)
			return
		}

		userRolesList, ok := userRoles.([]string)
		if !ok {
			response.Error(c, http.StatusInternalServerError, "invalid roles format", nil)
			return
		}

		for _, userRole := range userRolesList {
			for _, requiredRole := range roles {
				if userRole == requiredRole {
					c.Next()
					return
				}
			}
		}

		err := errors.New("user does not have required role")
		response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
			"required_roles": roles,
			"user_roles":     userRolesList,
		})
	}
}

// AdminOnly returns Auth plus the admin role check.
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.Auth(), m.RequireRole("admin")}
}

// TLOnly returns Auth plus the TL role check.
func (m *AuthMiddleware) TLOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.Auth(), m.RequireRole("tl")}
}

// UserOnly returns Auth plus the team member role check.
func (m *AuthMiddleware) UserOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{m.Auth(), m.RequireRole("user")}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	// websocket clients cannot set headers from the browser
	return c.Query("token")
}

// GetIdentityID returns the authenticated identity id from context
func GetIdentityID(c *gin.Context) (int64, bool) {
	identityID, exists := c.Get("identity_id")
	if !exists {
		return 0, false
	}

	id, ok := identityID.(int64)
	return id, ok
}

// GetJTI returns the token id from context
func GetJTI(c *gin.Context) (string, bool) {
	jti, exists := c.Get("jti")
	if !exists {
		return "", false
	}

	jtiStr, ok := jti.(string)
	return jtiStr, ok
}

// HasRole checks if the authenticated user has role
func HasRole(c *gin.Context, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}
