package rest

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// fail writes the uniform error body. Internal detail never reaches the
// client; callers pass a safe message.
func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// paramID parses a numeric path parameter, returning ok=false after
// writing the 400 response.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, 400, "identificador inválido")
		return 0, false
	}
	return id, true
}
