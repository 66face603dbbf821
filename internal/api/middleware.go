package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/david/opportunity-finder/internal/logger"
)

// loggerMiddleware logs one structured line per request.
func loggerMiddleware(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status below is final.
				c.Error(err)
			}

			path := req.URL.Path
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", path),
				logger.Int("status", c.Response().Status),
				logger.Duration("duration", time.Since(start)),
				logger.String("client_ip", c.RealIP()),
			}
			if req.URL.RawQuery != "" {
				fields = append(fields, logger.String("query", req.URL.RawQuery))
			}
			if !strings.HasPrefix(path, "/health") {
				fields = append(fields, logger.String("user_agent", req.UserAgent()))
			}

			if err != nil {
				log.Error("HTTP request with errors", append(fields, logger.Error(err))...)
			} else {
				log.Info("HTTP request", fields...)
			}
			return nil
		}
	}
}
