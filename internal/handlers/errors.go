package handlers

import (
	"errors"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
)

// writeError maps err to its status and a {error, message} body. Internal errors are logged
// and never echoed.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	code := apperr.CodeOf(err)
	msg := "internal error"

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
		msg = ae.Message
	}
	if status >= 500 {
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": code, "message": msg})
}
