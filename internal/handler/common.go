package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
)

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.NotFound:
		return http.StatusNotFound
	case model.InvalidState, model.InsufficientInventory:
		return http.StatusConflict
	case model.AuthorizationDenied:
		return http.StatusForbidden
	case model.InvalidArgument:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail renders an error returned by a non-workflow service call.
func fail(c echo.Context, log *slog.Logger, err error) error {
	out := model.Failed(err)
	if out.Kind == model.StoreUnavailable {
		log.Error("request failed", "path", c.Path(), "err", err)
	}
	return c.JSON(statusFor(out.Kind), echo.Map{"error": out.Message, "error_kind": out.Kind})
}

// outcome renders a workflow result: ok on success, the mapped status
// otherwise.
func outcome(c echo.Context, ok int, o model.Outcome, body any) error {
	if o.Success {
		return c.JSON(ok, body)
	}
	return c.JSON(statusFor(o.Kind), body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "error_kind": model.InvalidArgument})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func callerOf(c echo.Context) (model.Caller, bool) { return middleware.CallerFrom(c) }
