package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/pkg/apperror"
)

const (
	ContextUserID   = "user_id"
	ContextIdentity = "identity"
	ContextToken    = "token"
	ContextRole     = "role"
	ContextProfile  = "profile"
)

// GetUserID retrieves the authenticated identity id from the context
func GetUserID(c *gin.Context) (string, error) {
	userID := c.GetString(ContextUserID)
	if userID == "" {
		return "", apperror.ErrUnauthorized
	}
	return userID, nil
}

// GetIdentity retrieves the authenticated identity set by RequireAuth.
func GetIdentity(c *gin.Context) (*gateway.Identity, error) {
	v, exists := c.Get(ContextIdentity)
	if !exists {
		return nil, apperror.ErrUnauthorized
	}
	identity, ok := v.(*gateway.Identity)
	if !ok || identity == nil {
		return nil, apperror.ErrUnauthorized
	}
	return identity, nil
}

// GetRole returns the role resolved by RequireRole, or "" before it ran.
func GetRole(c *gin.Context) entity.Role {
	role, _ := c.Get(ContextRole)
	r, _ := role.(entity.Role)
	return r
}

// GetProfile returns the profile resolved by RequireRole.
func GetProfile(c *gin.Context) (entity.Profile, error) {
	v, exists := c.Get(ContextProfile)
	if !exists {
		return nil, apperror.ErrForbidden
	}
	p, ok := v.(entity.Profile)
	if !ok || p == nil {
		return nil, apperror.ErrForbidden
	}
	return p, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	var validationErr *apperror.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please correct the highlighted fields", "fields": validationErr.Fields})
		return
	}

	var authErr *gateway.AuthError
	if errors.As(err, &authErr) {
		c.JSON(authErr.Status(), gin.H{"error": gateway.AuthMessage(err), "code": authErr.Code})
		return
	}

	code := apperror.MapErrorToStatus(err)
	message := err.Error()

	switch {
	case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, gateway.ErrPermissionDenied):
		code = http.StatusServiceUnavailable
		message = "something went wrong talking to the server, please try again"
	case code == http.StatusInternalServerError:
		zap.L().Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
		message = "internal server error"
	}

	c.JSON(code, gin.H{"error": message})
}
