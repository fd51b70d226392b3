package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// Clinic roles carried in the token's roles claim.
const (
	RoleAdmin     = "admin"
	RoleBilling   = "billing"
	RoleReception = "reception"
)

// HasAnyRole reports whether granted satisfies one of required. Admin
// satisfies everything.
func HasAnyRole(granted []string, required ...string) bool {
	if lo.Contains(granted, RoleAdmin) {
		return true
	}
	return len(lo.Intersect(granted, required)) > 0
}

// RequireRole rejects requests whose identity holds none of roles. Cashier
// endpoints that move money require RoleBilling; read endpoints also admit
// RoleReception.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasAnyRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
