package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/session"
	"tutorme.app/marketplace/pkg/metrics"
	"tutorme.app/marketplace/pkg/response"
)

// TokenCookie carries the access token for page requests.
const TokenCookie = "token"

type AuthMiddleware struct {
	auth     gateway.Auth
	profiles session.ProfileSource
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewAuthMiddleware(auth gateway.Auth, profiles session.ProfileSource, m *metrics.Metrics, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		auth:     auth,
		profiles: profiles,
		metrics:  m,
		log:      log,
	}
}

// TokenFromRequest reads the bearer header, then the token cookie, then the
// token query parameter (useful for WebSockets).
func TokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}

	return c.Query("token")
}

// verify sets the identity on the context or reports why it could not.
func (m *AuthMiddleware) verify(c *gin.Context) error {
	tokenString := TokenFromRequest(c)
	if tokenString == "" {
		return gateway.NewAuthError(gateway.CodeExpiredToken)
	}

	identity, err := m.auth.Verify(c.Request.Context(), tokenString)
	if err != nil {
		var authErr *gateway.AuthError
		if errors.As(err, &authErr) {
			m.metrics.ObserveAuthFailure(authErr.Code)
		}
		return err
	}

	c.Set(response.ContextUserID, identity.ID)
	c.Set(response.ContextIdentity, identity)
	c.Set(response.ContextToken, tokenString)
	return nil
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if TokenFromRequest(c) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			c.Abort()
			return
		}
		if err := m.verify(c); err != nil {
			response.ResponseError(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole resolves the caller's profile and rejects roles not listed.
// It must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := response.GetIdentity(c)
		if err != nil {
			response.ResponseError(c, err)
			c.Abort()
			return
		}

		snap := session.Resolve(c.Request.Context(), m.profiles, identity)
		switch snap.State {
		case session.Errored:
			response.ResponseError(c, snap.Err)
			c.Abort()
			return
		case session.Orphaned:
			c.JSON(http.StatusForbidden, gin.H{"error": "no profile found for this account"})
			c.Abort()
			return
		}

		if len(roles) > 0 && !hasRole(roles, snap.Role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "this action is not available for your role"})
			c.Abort()
			return
		}

		c.Set(response.ContextRole, snap.Role)
		c.Set(response.ContextProfile, snap.Profile)
		c.Next()
	}
}

func hasRole(roles []entity.Role, role entity.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
