package http

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/xid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// requestLogger tags every request with an id and logs its outcome.
func requestLogger(ctx huma.Context, next func(huma.Context)) {
	id := ctx.Header(RequestIDHeader)
	if id == "" {
		id = xid.New().String()
	}
	ctx.SetHeader(RequestIDHeader, id)

	start := time.Now()
	next(ctx)

	u := ctx.URL()
	attrs := []any{
		"request_id", id,
		"method", ctx.Method(),
		"path", u.Path,
		"status", ctx.Status(),
		"duration", time.Since(start).Round(time.Microsecond),
	}

	if ctx.Status() >= 500 {
		slog.Error("Request failed", attrs...)
		return
	}
	slog.Debug("Request handled", attrs...)
}
