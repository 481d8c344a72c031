package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tutorme.app/marketplace/internal/entity"
	"tutorme.app/marketplace/internal/modules/dashboard/service"
	"tutorme.app/marketplace/pkg/response"
)

// PageHandler serves the view models behind the site's pages.
type PageHandler struct {
	dashboardService service.DashboardService
}

func NewPageHandler(dashboardService service.DashboardService) *PageHandler {
	return &PageHandler{dashboardService: dashboardService}
}

func (h *PageHandler) Landing(c *gin.Context) {
	h.withOptions(c, "landing")
}

func (h *PageHandler) Register(c *gin.Context) {
	h.withOptions(c, "register")
}

func (h *PageHandler) Login(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "login"})
}

func (h *PageHandler) ForgotPassword(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "forgot-password"})
}

func (h *PageHandler) withOptions(c *gin.Context, page string) {
	opts, err := h.dashboardService.RegisterOptions(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "options": opts})
}

func (h *PageHandler) StudentDashboard(c *gin.Context) {
	section, ok := h.section(c, entity.RoleStudent)
	if !ok {
		return
	}

	d, err := h.dashboardService.StudentDashboard(c.Request.Context(), c.GetString(response.ContextUserID), section)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

func (h *PageHandler) TutorDashboard(c *gin.Context) {
	section, ok := h.section(c, entity.RoleTutor)
	if !ok {
		return
	}

	d, err := h.dashboardService.TutorDashboard(c.Request.Context(), c.GetString(response.ContextUserID), section)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// section redirects unknown tabs back to the dashboard root.
func (h *PageHandler) section(c *gin.Context, role entity.Role) (service.Section, bool) {
	section, ok := service.ParseSection(role, strings.Trim(c.Param("section"), "/"))
	if !ok {
		c.Redirect(http.StatusFound, role.Dashboard())
		return "", false
	}
	return section, true
}
