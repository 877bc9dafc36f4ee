package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/idater/idater-backend/internal/logger"
)

// ParamUint parses a numeric id path parameter.
func ParamUint(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.Validation("invalid " + name)
	}
	return id, nil
}

// OK writes the standard success envelope.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes the success envelope with a 201.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Fail maps err to its HTTP status and writes the error envelope. Unexpected
// errors are logged and surface as a bare 500.
func Fail(c *gin.Context, err error) {
	domain := apperrors.Map(err)
	if domain.Status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.JSON(domain.Status, gin.H{
		"success": false,
		"error":   domain.Message,
		"code":    domain.Code,
	})
}
