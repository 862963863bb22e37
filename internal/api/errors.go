package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/models"
)

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrSignatureInvalid):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the failure envelope. The internal cause is only
// included in development.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{
		"success": false,
		"error":   models.PublicMessage(err),
	}
	if c.GetBool("development") {
		body["details"] = err.Error()
	}
	c.Error(err)
	c.JSON(status, body)
}

// badRequest rejects a malformed request body or parameter
func badRequest(c *gin.Context, message string, cause error) {
	respondError(c, models.NewError(models.ErrValidation, message, cause))
}

// intParam parses a positive integer path parameter
func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		badRequest(c, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
