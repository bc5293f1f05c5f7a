package handler

import (
	"net/http"

	"medsupply/internal/apperror"
	"medsupply/internal/logger"
	"medsupply/internal/middleware"
	"medsupply/internal/model"
	"medsupply/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError maps a service error onto the response envelope. Unexpected
// errors are logged and hidden from the client.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, response.Error(status, "Internal server error"))
		return
	}
	c.JSON(status, response.ErrorWithCode(status, apperror.CodeOf(err), err.Error()))
}

// bindJSON decodes the body into req and answers 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleValidationError(c, err)
		return false
	}
	return true
}

// paramUUID parses a path parameter and answers 400 when it is malformed
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, apperror.CodeValidation, "invalid "+name+": "+c.Param(name)))
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the authenticated caller; Authenticate must run first
func actor(c *gin.Context) (model.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, middleware.ErrMissingToken.Error()))
	}
	return a, ok
}
