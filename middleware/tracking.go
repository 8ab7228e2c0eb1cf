package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/utils"
)

// TrackingCORS opens the tracking endpoints to any origin. Preflight requests
// get 200 with an empty body and anything but POST gets 405.
func TrackingCORS() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type")

		switch ctx.Request.Method {
		case http.MethodOptions:
			ctx.AbortWithStatus(http.StatusOK)
		case http.MethodPost:
			ctx.Next()
		default:
			ctx.Header("Allow", "POST, OPTIONS")
			utils.Error(ctx, http.StatusMethodNotAllowed, "Method not allowed")
			ctx.Abort()
		}
	}
}
