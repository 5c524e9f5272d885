package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ticket-marketplace/internal/model"
)

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// CallerFrom returns the authenticated caller stored by JWTAuth.
func CallerFrom(c echo.Context) (model.Caller, bool) {
    id, _ := c.Get(ctxUserID).(string)
    role, _ := c.Get(ctxRole).(string)
    if id == "" || role == "" {
        return model.Caller{}, false
    }
    return model.Caller{UserID: id, Role: role}, true
}

// userID is the caller's id, or "anon" on unauthenticated routes.
func userID(c echo.Context) string {
    if id, ok := c.Get(ctxUserID).(string); ok && id != "" {
        return id
    }
    return "anon"
}
