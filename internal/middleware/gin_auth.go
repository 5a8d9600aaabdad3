package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GinRequireAuth adapts Gate.RequireAuth to Gin. Auth decisions stay
// session-based and provider-agnostic.
func GinRequireAuth(gate *Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false

		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})

		// Wrap Gin request with net/http auth middleware
		gate.RequireAuth(next).ServeHTTP(c.Writer, c.Request)

		// If the gate already answered, stop the Gin chain
		if !passed {
			c.Abort()
		}
	}
}
