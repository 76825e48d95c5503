package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			for _, required := range roles {
				if HasRole(ctx, required) {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// RequireSelf rejects requests whose path parameter names a different user
// than the authenticated one. Ids compare case-insensitively since manager
// ids are stored uppercase. Admins may act for anyone.
func RequireSelf(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if HasRole(ctx, RoleAdmin) || strings.EqualFold(strings.TrimSpace(c.Param(param)), UserIDFromContext(ctx)) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, "cannot act on behalf of another manager")
		}
	}
}
