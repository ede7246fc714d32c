package handler

import (
	"errors"
	"net/http"

	"github.com/appdotbuilder/vehicle-refuel-manager/internal/service"
	"github.com/appdotbuilder/vehicle-refuel-manager/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	forbiddenMessage  = "Unauthorized action."
	validationMessage = "The given data was invalid."
)

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity,
			response.ValidationError(http.StatusUnprocessableEntity, validationMessage, validationErr.Fields))
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, forbiddenMessage))
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
	default:
		// picked up by the request logger
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, message))
}
