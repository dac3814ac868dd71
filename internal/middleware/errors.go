package middleware

import (
	"errors"
	"net/http"

	"attendance/internal/apperr"
	"attendance/pkg/response"

	"github.com/gin-gonic/gin"
)

// ErrorResponse translates err into a status code and envelope. Only the message of a typed
// error reaches the client, wrapped causes stay in the logs.
func ErrorResponse(err error) (int, response.Response) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError,
			response.Error(apperr.KindUnexpected.Code(), "an unexpected error occurred, please try again")
	}

	status := ae.Kind.HTTPStatus()
	if len(ae.Details) > 0 {
		return status, response.ErrorWithData(ae.Kind.Code(), ae.Message, ae.Details)
	}
	return status, response.Error(ae.Kind.Code(), ae.Message)
}

// WriteError writes err as the response.
func WriteError(c *gin.Context, err error) {
	status, body := ErrorResponse(err)
	_ = c.Error(err)
	c.JSON(status, body)
}

// AbortWithError writes err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := ErrorResponse(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
