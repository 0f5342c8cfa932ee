package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestExtractVersionFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/warehouses", "v1"},
		{"/v1", "v1"},
		{"/v12/x", "v12"},
		{"/health", ""},
		{"/view/x", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, extractVersionFromPath(tt.path))
		})
	}
}

func TestAPIVersionResolver_RejectsUnknownVersion(t *testing.T) {
	vm := NewVersionMiddleware()
	e := echo.New()
	e.Use(vm.APIVersionResolver())
	vm.VersionRoute(e, "v1").GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(APIVersionKey).(string))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Body.String())
	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v2/ping", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported API version")
}
