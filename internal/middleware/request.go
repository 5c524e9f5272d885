package middleware

import (
    "context"
    "log/slog"
    "time"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
)

// RequestLogger logs one structured line per request.
func RequestLogger(log *slog.Logger) echo.MiddlewareFunc {
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:   true,
        LogURI:      true,
        LogStatus:   true,
        LogLatency:  true,
        LogRemoteIP: true,
        LogError:    true,
        HandleError: true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            attrs := []any{
                "method", v.Method,
                "uri", v.URI,
                "status", v.Status,
                "latency_ms", v.Latency.Milliseconds(),
                "remote_ip", v.RemoteIP,
                "user_id", userID(c),
            }
            if v.Error != nil {
                log.Error("request failed", append(attrs, "err", v.Error)...)
                return nil
            }
            log.Info("request", attrs...)
            return nil
        },
    })
}

// RequestTimeout bounds the request context.  Workflows observe it through
// their store calls.
func RequestTimeout(d time.Duration) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx, cancel := context.WithTimeout(c.Request().Context(), d)
            defer cancel()
            c.SetRequest(c.Request().WithContext(ctx))
            return next(c)
        }
    }
}
