package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/certprep/certprep-backend/internal/exam"
	"github.com/certprep/certprep-backend/internal/response"
)

// failExam maps an exam error kind onto the response envelope.
func failExam(c *gin.Context, err error) {
	var (
		transition *exam.TransitionError
		validation *exam.ValidationError
	)

	switch {
	case errors.Is(err, exam.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.As(err, &transition):
		code := response.ErrInvalidTransition
		if transition.Reason == exam.ReasonTimeExpired {
			code = response.ErrTimeExpired
		}
		response.FailWithDetail(c, http.StatusConflict, code, transition.Error())
	case errors.As(err, &validation):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			validation.Field: validation.Reason,
		})
	case errors.Is(err, exam.ErrInsufficientData):
		response.FailWithDetail(c, http.StatusUnprocessableEntity, response.ErrInsufficientData, err.Error())
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
