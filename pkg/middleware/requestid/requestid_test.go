package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(captured *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		*captured = Value(c)
		c.Status(http.StatusOK)
	})
	return r
}

func TestMiddlewareGeneratesID(t *testing.T) {
	var captured string
	w := httptest.NewRecorder()
	newRouter(&captured).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(captured)
	require.NoError(t, err)
	assert.Equal(t, captured, w.Header().Get(Header))
}

func TestMiddlewareKeepsClientID(t *testing.T) {
	var captured string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "client-123")
	w := httptest.NewRecorder()
	newRouter(&captured).ServeHTTP(w, req)

	assert.Equal(t, "client-123", captured)
}

func TestMiddlewareReplacesOversizedID(t *testing.T) {
	var captured string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, strings.Repeat("x", 500))
	w := httptest.NewRecorder()
	newRouter(&captured).ServeHTTP(w, req)

	assert.Len(t, captured, 36)
}
