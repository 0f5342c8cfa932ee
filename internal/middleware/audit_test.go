package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"assetflow/internal/common"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestAudit_CarriesActorAndLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(NewAuditMiddleware(zap.New(core)).RequestAudit())

	var seen string
	e.GET("/v1/tenants/:tenant/ping", func(c echo.Context) error {
		seen, _ = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/acme/ping", nil)
	req.Header.Set(common.ActorIDHeader, "user-9")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-9", seen)

	entries := logs.FilterMessage("request served").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "acme", fields["tenant"])
		assert.Equal(t, "user-9", fields["actor"])
		assert.EqualValues(t, http.StatusNoContent, fields["status"])
	}
}

func TestRequestAudit_LogsRejections(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e := echo.New()
	e.Use(NewAuditMiddleware(zap.New(core)).RequestAudit())
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "nope")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("request rejected").Len())
	_, ok := ActorFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
