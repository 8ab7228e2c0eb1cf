package utils

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/jobboard/config"
)

// Success writes 200 with {"success": true} merged into data.
func Success(ctx *gin.Context, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	ctx.JSON(http.StatusOK, body)
}

// Error writes {"error": message} with status.
func Error(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}

// ServerError logs err and writes 500. Outside production the stack is included.
func ServerError(ctx *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if !config.Get().IsProduction() {
		body["stack"] = string(debug.Stack())
	}
	if Logger != nil {
		Logger.Error("request failed",
			zap.String("path", ctx.Request.URL.Path),
			zap.String("request_id", ctx.GetString("request_id")),
			zap.Error(err))
	}
	ctx.JSON(http.StatusInternalServerError, body)
}
