package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger emits one structured line per request. Health probes are skipped to
// keep the logs to coordination traffic. Every line carries the request id;
// once authentication has run it also carries the acting hospital, so one
// matching request can be traced across both hospitals' activity.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path == "/health" || strings.HasPrefix(path, "/health/") {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			res := c.Response()
			evt := logger.Info()
			switch {
			case err != nil:
				evt = logger.Error().Err(err)
			case res.Status >= http.StatusInternalServerError:
				evt = logger.Error()
			case res.Status >= http.StatusBadRequest:
				evt = logger.Warn()
			}

			rid, _ := c.Get("request_id").(string)
			evt = evt.
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", path).
				Int("status", res.Status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if hospitalID, ok := c.Get("hospital_id").(string); ok && hospitalID != "" {
				evt = evt.Str("hospital_id", hospitalID)
			}
			evt.Msg("request")

			return err
		}
	}
}
