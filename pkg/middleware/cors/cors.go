package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowedMethods = "GET, POST, OPTIONS"
	allowedHeaders = "Content-Type, X-Requested-With, X-Request-ID"
	exposedHeaders = "X-Request-ID, Location, Content-Disposition"
	preflightAge   = "600"
)

// policy decides which origins may call the API. An empty allow list admits every origin.
type policy struct {
	origins map[string]struct{}
}

func newPolicy(allowedOrigins []string) policy {
	p := policy{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, origin := range allowedOrigins {
		if origin = normalize(origin); origin != "" {
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p policy) open() bool {
	return len(p.origins) == 0
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request, or "" to omit it.
func (p policy) allowOrigin(origin string) string {
	switch {
	case origin == "" && p.open():
		return "*"
	case origin == "":
		return ""
	case p.open():
		return origin
	}
	if _, ok := p.origins[normalize(origin)]; ok {
		return origin
	}
	return ""
}

func normalize(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}

// New returns CORS middleware for the solver API. Preflight requests end with 204.
func New(allowedOrigins []string) gin.HandlerFunc {
	p := newPolicy(allowedOrigins)
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if allow := p.allowOrigin(c.GetHeader("Origin")); allow != "" {
			h.Set("Access-Control-Allow-Origin", allow)
		}
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Methods", allowedMethods)
		h.Set("Access-Control-Allow-Headers", allowedHeaders)
		h.Set("Access-Control-Expose-Headers", exposedHeaders)
		h.Set("Access-Control-Max-Age", preflightAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
