package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"github.com/raci-tracker/backend/pkg/response"
)

type passedKey struct{}

// RateLimit allows limit requests per window per client IP. Excess requests get 429 with the
// standard error envelope.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	limiter := httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(response.Body{Success: false, Message: "too many requests, try again later"})
		}),
	)
	h := limiter(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		if passed, ok := r.Context().Value(passedKey{}).(*bool); ok {
			*passed = true
		}
	}))
	return func(c *gin.Context) {
		passed := false
		h.ServeHTTP(c.Writer, c.Request.WithContext(context.WithValue(c.Request.Context(), passedKey{}, &passed)))
		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}
