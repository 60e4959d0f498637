package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// CORS answers preflight requests and sets CORS headers for the allowed origins. Origins may
// contain one wildcard, e.g. "https://*.example.com". Credentials are allowed and preflight
// results are cached for a day.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cc := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return func(c *gin.Context) {
		passed := false
		cc.Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			// preflight already answered
			c.Abort()
			return
		}
		c.Next()
	}
}
