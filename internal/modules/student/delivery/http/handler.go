package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tutorme.app/marketplace/internal/modules/student/dto"
	"tutorme.app/marketplace/internal/modules/student/service"
	commonDto "tutorme.app/marketplace/pkg/dto"
	"tutorme.app/marketplace/pkg/response"
	"tutorme.app/marketplace/pkg/validator"
)

type StudentHandler struct {
	studentService service.StudentService
}

func NewStudentHandler(studentService service.StudentService) *StudentHandler {
	return &StudentHandler{studentService: studentService}
}

// MyStudents lists the students the calling tutor has sessions with.
func (h *StudentHandler) MyStudents(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	students, err := h.studentService.MyStudents(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, commonDto.NewListResponse(students))
}

func (h *StudentHandler) ChangePlan(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.ChangePlanInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.ResponseError(c, validator.ToValidationError(err))
		return
	}

	res, err := h.studentService.ChangePlan(c.Request.Context(), userID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
