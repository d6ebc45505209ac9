package response

import (
	"tixly/internal/shared/apperr"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps an application error onto the standard envelope.
func RespondError(c *gin.Context, err error) {
	code := apperr.HTTPStatus(err)
	RespondJSON(c, "error", code, apperr.MessageOf(err), nil, gin.H{
		"kind": string(apperr.KindOf(err)),
	})
}
