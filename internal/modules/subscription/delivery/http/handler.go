package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorme.app/marketplace/internal/modules/subscription/service"
	commonDto "tutorme.app/marketplace/pkg/dto"
	"tutorme.app/marketplace/pkg/response"
)

type PlanHandler struct {
	planService service.PlanService
}

func NewPlanHandler(planService service.PlanService) *PlanHandler {
	return &PlanHandler{planService: planService}
}

func (h *PlanHandler) GetPlans(c *gin.Context) {
	plans, err := h.planService.GetPlans(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.NewListResponse(plans))
}
