package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/bookingplatform/errors"
)

// RespondWithError writes err as the standard error body. AppErrors carry
// their own status; anything else becomes a generic 500.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondNotFound writes the standard body for an unknown route.
func RespondNotFound(c *gin.Context, route string) {
	appErr := apperrors.New(apperrors.ErrCodeNotFound, "Cannot "+route, http.StatusNotFound)
	c.AbortWithStatusJSON(http.StatusNotFound, appErr.ToResponse())
}

// RespondJSON writes an already encoded JSON document.
func RespondJSON(c *gin.Context, status int, body []byte) {
	c.Data(status, "application/json; charset=utf-8", body)
}
