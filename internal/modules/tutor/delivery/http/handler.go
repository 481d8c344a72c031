package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorme.app/marketplace/internal/modules/tutor/dto"
	"tutorme.app/marketplace/internal/modules/tutor/service"
	commonDto "tutorme.app/marketplace/pkg/dto"
	"tutorme.app/marketplace/pkg/response"
	"tutorme.app/marketplace/pkg/validator"
)

type TutorHandler struct {
	tutorService service.TutorService
}

func NewTutorHandler(tutorService service.TutorService) *TutorHandler {
	return &TutorHandler{tutorService: tutorService}
}

func (h *TutorHandler) ListTutors(c *gin.Context) {
	var filter dto.TutorFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	tutors, err := h.tutorService.ListTutors(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.NewListResponse(tutors))
}

func (h *TutorHandler) GetTutor(c *gin.Context) {
	tutor, err := h.tutorService.GetTutor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, tutor)
}

func (h *TutorHandler) GetReviews(c *gin.Context) {
	reviews, err := h.tutorService.GetReviews(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.NewListResponse(reviews))
}

func (h *TutorHandler) SearchToken(c *gin.Context) {
	res, err := h.tutorService.SearchToken(c.Request.Context(), response.GetRole(c))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *TutorHandler) UpdateAvailability(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.AvailabilityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	availability, err := h.tutorService.UpdateAvailability(c.Request.Context(), userID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"availability": availability})
}
