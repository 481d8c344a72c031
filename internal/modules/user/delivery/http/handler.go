package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tutorme.app/marketplace/internal/gateway"
	"tutorme.app/marketplace/internal/middleware"
	"tutorme.app/marketplace/internal/modules/user/dto"
	"tutorme.app/marketplace/internal/modules/user/service"
	"tutorme.app/marketplace/pkg/metrics"
	"tutorme.app/marketplace/pkg/response"
	"tutorme.app/marketplace/pkg/validator"
)

type AuthHandler struct {
	authService  service.AuthService
	metrics      *metrics.Metrics
	secureCookie bool
}

func NewAuthHandler(authService service.AuthService, m *metrics.Metrics, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		metrics:      m,
		secureCookie: secureCookie,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input dto.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.authService.Register(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setTokenCookie(c, res.AccessToken, res.ExpiresAt)
	c.JSON(http.StatusCreated, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input dto.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.authService.Login(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.setTokenCookie(c, res.AccessToken, res.ExpiresAt)
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(response.ContextToken)
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		h.fail(c, err)
		return
	}

	c.SetCookie(middleware.TokenCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var input dto.ForgotPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), input); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "check your inbox for a password reset link"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var input dto.ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), input); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated, you can log in now"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	identity, err := response.GetIdentity(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.authService.Me(c.Request.Context(), identity)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) fail(c *gin.Context, err error) {
	var authErr *gateway.AuthError
	if errors.As(err, &authErr) {
		h.metrics.ObserveAuthFailure(authErr.Code)
	}
	response.ResponseError(c, err)
}

func (h *AuthHandler) setTokenCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", h.secureCookie, true)
}
