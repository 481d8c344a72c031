package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/session"
	"tutorme.app/marketplace/pkg/response"
)

const (
	LoginPath   = "/login"
	LandingPath = "/"
)

// resolvePage verifies the caller and resolves their profile. It redirects
// and returns false when the request cannot continue.
func (m *AuthMiddleware) resolvePage(c *gin.Context) (session.Snapshot, bool) {
	if err := m.verify(c); err != nil {
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
		return session.Snapshot{}, false
	}

	identity, _ := response.GetIdentity(c)
	snap := session.Resolve(c.Request.Context(), m.profiles, identity)
	switch snap.State {
	case session.Errored:
		m.log.Warn("failed to resolve page session", zap.String("path", c.Request.URL.Path), zap.Error(snap.Err))
		response.ResponseError(c, snap.Err)
		c.Abort()
		return snap, false
	case session.TutorResolved, session.StudentResolved:
		c.Set(response.ContextRole, snap.Role)
		c.Set(response.ContextProfile, snap.Profile)
		return snap, true
	default:
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
		return snap, false
	}
}

// PageGuard protects a role's dashboard pages. Anonymous callers are sent to
// the login page; a signed-in user of another role is sent to their own
// dashboard.
func (m *AuthMiddleware) PageGuard(role entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := m.resolvePage(c)
		if !ok {
			return
		}
		if snap.Role != role {
			c.Redirect(http.StatusFound, snap.Dashboard())
			c.Abort()
			return
		}
		c.Next()
	}
}

// DashboardDispatch sends the caller to the dashboard of their role.
func (m *AuthMiddleware) DashboardDispatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := m.resolvePage(c)
		if !ok {
			return
		}
		c.Redirect(http.StatusFound, snap.Dashboard())
		c.Abort()
	}
}

// NoRoute sends unknown pages to the landing page. Unknown API paths get a
// JSON 404 instead.
func NoRoute(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}
	c.Redirect(http.StatusFound, LandingPath)
}
