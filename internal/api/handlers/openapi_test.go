package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOpenAPISpec_OK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/openapi.json", GetOpenAPISpec)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/api/v1/dashboards/{id}/layout")
}

func TestGetOpenAPISpec_MissingFile(t *testing.T) {
	t.Setenv("DASHBOARD_OPENAPI_PATH", "")
	t.Chdir(t.TempDir())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/openapi.json", GetOpenAPISpec)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
