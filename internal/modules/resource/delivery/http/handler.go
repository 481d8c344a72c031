package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorme.app/marketplace/internal/modules/resource/dto"
	"tutorme.app/marketplace/internal/modules/resource/service"
	commonDto "tutorme.app/marketplace/pkg/dto"
	"tutorme.app/marketplace/pkg/response"
	"tutorme.app/marketplace/pkg/validator"
)

type ResourceHandler struct {
	resourceService service.ResourceService
}

func NewResourceHandler(resourceService service.ResourceService) *ResourceHandler {
	return &ResourceHandler{resourceService: resourceService}
}

func (h *ResourceHandler) ListResources(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var filter dto.ResourceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	resources, err := h.resourceService.ListResources(c.Request.Context(), userID, filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.NewListResponse(resources))
}

func (h *ResourceHandler) Access(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.resourceService.Access(c.Request.Context(), userID, c.Param("subject"), c.Param("category"), c.Param("id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
