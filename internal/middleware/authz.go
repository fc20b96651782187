package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/model"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/service"
)

// AdminRole is the distinguished role name that bypasses all permission
// checks. Comparison is case-insensitive.
const AdminRole = "administrator"

// Policy declares what a route demands: either it is public, or it names
// the permissions a caller's role must hold. A registered non-public
// route that declares no permissions is rejected for everyone but
// administrators; there is no silent default.
type Policy struct {
	Public      bool
	Permissions []string
}

// PolicyTable maps route identifiers ("METHOD /path", Echo's registered
// path with parameter names) to their Policy. The table is assembled in
// the router next to the route registrations, so the declaration lives
// one screen away from the handler it guards.
type PolicyTable map[string]Policy

// RouteKey builds the lookup key for a request.
func RouteKey(method, path string) string { return method + " " + path }

// RoleResolver is the slice of the role/permission store the guard
// consults. It is queried on every request; role and permission edits
// take effect immediately without re-login.
type RoleResolver interface {
	RoleForUser(ctx context.Context, userID string) (model.RoleUser, error)
	AllRoleNames(ctx context.Context) ([]string, error)
	PermissionsForRole(ctx context.Context, roleID string) ([]model.Permission, error)
}

// NewPermissionGuard enforces the role-permission policy per request:
//
//  1. public routes pass unconditionally
//  2. the caller must have a role (first assignment wins)
//  3. a role named "administrator" (any case) passes unconditionally
//  4. the role name must still exist among known roles
//  5. the role must grant at least one permission
//  6. the route must declare required permissions
//  7. every declared permission must be held; the first missing one
//     rejects, naming it
func NewPermissionGuard(table PolicyTable, roles RoleResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			policy := table[RouteKey(c.Request().Method, c.Path())]
			if policy.Public {
				return next(c)
			}
			ctx := c.Request().Context()

			ru, err := roles.RoleForUser(ctx, UserID(c))
			if err != nil {
				if err == sql.ErrNoRows {
					return guardReject(c, service.ErrNoRole)
				}
				return guardFail(c)
			}
			if strings.EqualFold(ru.RoleName, AdminRole) {
				return next(c)
			}

			known, err := roles.AllRoleNames(ctx)
			if err != nil {
				return guardFail(c)
			}
			if !contains(known, ru.RoleName) {
				return guardReject(c, service.ErrUnknownRole)
			}

			perms, err := roles.PermissionsForRole(ctx, ru.RoleID)
			if err != nil {
				return guardFail(c)
			}
			if len(perms) == 0 {
				return guardReject(c, service.ErrNoPermissions)
			}
			if len(policy.Permissions) == 0 {
				return guardReject(c, service.ErrEndpointUnconfigured)
			}

			held := make(map[string]bool, len(perms))
			for _, p := range perms {
				held[p.Name] = true
			}
			for _, required := range policy.Permissions {
				if !held[required] {
					return guardReject(c, service.MissingPermission(required))
				}
			}
			return next(c)
		}
	}
}

func guardReject(c echo.Context, err *service.Error) error {
	return c.JSON(err.Status, echo.Map{
		"statusCode": err.Status, "error": err.Code, "message": err.Message})
}

func guardFail(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"statusCode": http.StatusInternalServerError, "message": "authorization lookup failed"})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
