package apihandlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS answers preflight requests and sets CORS headers for allowed origins.
// A "*" entry allows every origin.
func CORS(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && originAllowed(allowed, origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// originAllowed reports whether origin may connect. Requests without an Origin
// header come from non-browser clients and are always allowed.
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// RegisterRoutes mounts every HTTP endpoint on router.
func RegisterRoutes(router *gin.Engine, h *APIHandler) {
	router.Use(CORS(h.App.Config.Server.AllowedOrigins))

	agent := router.Group("/agent")
	{
		agent.POST("/tts-naturalness", h.SubmitNaturalnessHandler)
	}
	router.GET("/ws", h.ProgressWSHandler)
	router.GET("/health", h.HealthHandler)
}
