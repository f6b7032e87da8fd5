// Package handlers implements the versioned HTTP API: library listing,
// selection resolution, pipeline runs, candidate similarity, and health.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/molforge/fragelab/internal/interfaces/http/middleware"
	"github.com/molforge/fragelab/pkg/errors"
	"github.com/molforge/fragelab/pkg/types/common"
)

// respondData writes a success envelope.
func respondData[T any](c *gin.Context, status int, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.GetRequestID(c)
	c.JSON(status, resp)
}

// respondPage writes a success envelope with pagination.
func respondPage[T any](c *gin.Context, data T, p common.Pagination) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.GetRequestID(c)
	resp.Pagination = &p
	c.JSON(http.StatusOK, resp)
}

// respondError maps err's code to its HTTP status and writes the error
// envelope. Errors without an AppError in their chain surface as 500s with a
// generic message so internals never leak.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	message := errors.DefaultMessageForCode(code)
	if appErr := errors.AsAppError(err); appErr != nil {
		message = appErr.Message
	}

	resp := common.NewErrorResponse(code.String(), message)
	resp.RequestID = middleware.GetRequestID(c)
	c.AbortWithStatusJSON(status, resp)
}

// respondBindError reports a malformed request body.
func respondBindError(c *gin.Context, err error) {
	respondError(c, errors.Wrap(err, errors.ErrCodeValidation, "invalid request body"))
}
