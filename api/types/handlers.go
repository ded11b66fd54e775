package types

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/podforge/digest-api/internal/models"
)

// Handler utility functions to reduce duplication across handlers

// ParseUintParam extracts and parses a URL parameter as uint
// Returns the parsed value and sends error response if parsing fails
func ParseUintParam(c *gin.Context, paramName string) (uint, bool) {
	paramStr := c.Param(paramName)
	value, err := strconv.ParseUint(paramStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  StatusError,
			Message: "Invalid " + paramName,
		})
		return 0, false
	}
	return uint(value), true
}

// ModeQuery parses the optional ?mode= query parameter, defaulting to full
// mode. Sends the error response itself when the value is unknown.
func ModeQuery(c *gin.Context) (models.Mode, bool) {
	mode, err := models.ParseMode(c.Query("mode"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  StatusError,
			Message: err.Error(),
		})
		return "", false
	}
	return mode, true
}

// IntQuery parses an optional integer query parameter, clamped to
// [1, max]. Out-of-range and unparseable values fall back to def.
func IntQuery(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 || v > max {
		return def
	}
	return v
}
