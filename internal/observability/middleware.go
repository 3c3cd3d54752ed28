package observability

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// EchoRequestContextMiddleware stamps request metadata into the request
// context so the slog handler can attach it to every log line.
func EchoRequestContextMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := WithRequestMetadata(
				c.Request().Context(),
				c.Response().Header().Get(echo.HeaderXRequestID),
				resolvedRoute(c),
			)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func resolvedRoute(c echo.Context) string {
	route := strings.TrimSpace(c.Path())
	if route != "" {
		return route
	}
	return strings.TrimSpace(c.Request().URL.Path)
}
