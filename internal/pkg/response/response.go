package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes {"ok": true, ...fields}.
func Success(c *gin.Context, fields gin.H) {
	body := gin.H{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error writes {"ok": false, "code": code, "error": message} with the given http status.
func Error(c *gin.Context, status int, code int, message string) {
	c.JSON(status, gin.H{
		"ok":    false,
		"code":  code,
		"error": message,
	})
}
