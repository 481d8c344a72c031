package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorme.app/marketplace/internal/modules/subject/service"
	commonDto "tutorme.app/marketplace/pkg/dto"
	"tutorme.app/marketplace/pkg/response"
)

type SubjectHandler struct {
	subjectService service.SubjectService
}

func NewSubjectHandler(subjectService service.SubjectService) *SubjectHandler {
	return &SubjectHandler{subjectService: subjectService}
}

func (h *SubjectHandler) GetSubjects(c *gin.Context) {
	options, err := h.subjectService.GetSubjectOptions(c.Request.Context())
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.NewListResponse(options))
}
