package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"payment-core/internal/handler/response"
)

func newAuthRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AccessToken(apiKey))
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"pong": true})
	})
	return r
}

func TestAccessToken(t *testing.T) {
	r := newAuthRouter("sekrit")

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"valid token", "sekrit", http.StatusOK},
		{"wrong token", "nope", http.StatusUnauthorized},
		{"missing token", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.token != "" {
				req.Header.Set("access_token", tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
