package middleware

import (
	"context"
	"time"

	"assetflow/internal/common"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type actorKey struct{}

// ActorFromContext returns the actor stored by RequestAudit.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(string)
	return actor, ok && actor != ""
}

// AuditMiddleware writes one structured log line per request and carries the
// caller's actor id into the request context.
type AuditMiddleware struct {
	logger *zap.Logger
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(logger *zap.Logger) *AuditMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditMiddleware{logger: logger}
}

// RequestAudit logs every request once it has been served
func (m *AuditMiddleware) RequestAudit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			actor := req.Header.Get(common.ActorIDHeader)
			if actor != "" {
				c.SetRequest(req.WithContext(context.WithValue(req.Context(), actorKey{}, actor)))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			}
			if actor != "" {
				fields = append(fields, zap.String("actor", actor))
			}
			if tenant := c.Param("tenant"); tenant != "" {
				fields = append(fields, zap.String("tenant", tenant))
			}

			switch status := c.Response().Status; {
			case status >= 500:
				m.logger.Error("request failed", append(fields, zap.Error(err))...)
			case status >= 400:
				m.logger.Warn("request rejected", fields...)
			default:
				m.logger.Info("request served", fields...)
			}
			return nil
		}
	}
}
