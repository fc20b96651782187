// Package router wires the HTTP surface: every route registration sits
// next to the policy declaring who may call it, so the permission table
// and the handler table cannot drift apart silently.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/config"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/handler"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/middleware"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/repository"
)

// RegisterRoutes registers routes that require no authentication.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth lifecycle and the role/permission
// admin endpoints.
//
// Middleware order on protected routes is fixed: access authentication
// first, then the per-user rate limiter (every authenticated request is
// metered, even ones the permission guard later rejects), then the
// permission guard. Refresh and logout authenticate with the refresh
// token instead of the access token, so an expired access token can
// still rotate or close its session.
func RegisterAuth(e *echo.Echo, cfg config.Config, rate config.RateLimitConfig,
	a *handler.AuthHandler, adm *handler.AdminHandler,
	users *repository.UserRepo, roles *repository.RoleRepo) {

	table := middleware.PolicyTable{
		middleware.RouteKey("POST", "/auth/signup"): {Public: true},
		middleware.RouteKey("POST", "/auth/signin"): {Public: true},

		middleware.RouteKey("POST", "/auth/me"):             {Permissions: []string{"user:me"}},
		middleware.RouteKey("POST", "/auth/changepassword"): {Permissions: []string{"user:changepassword"}},
		middleware.RouteKey("POST", "/auth/logout"):         {Permissions: []string{"user:logout"}},

		middleware.RouteKey("POST", "/roles"):              {Permissions: []string{"roles:create"}},
		middleware.RouteKey("GET", "/roles"):               {Permissions: []string{"roles:read"}},
		middleware.RouteKey("POST", "/permissions"):        {Permissions: []string{"permissions:create"}},
		middleware.RouteKey("GET", "/permissions"):         {Permissions: []string{"permissions:read"}},
		middleware.RouteKey("POST", "/role-users"):         {Permissions: []string{"role-users:create"}},
		middleware.RouteKey("DELETE", "/role-users"):       {Permissions: []string{"role-users:delete"}},
		middleware.RouteKey("POST", "/role-permissions"):   {Permissions: []string{"role-permissions:create"}},
		middleware.RouteKey("DELETE", "/role-permissions"): {Permissions: []string{"role-permissions:delete"}},
	}

	accessAuth := middleware.AccessAuth(cfg.ATSecret)
	refreshAuth := middleware.RefreshAuth(cfg.RTSecret)
	limiter := middleware.NewUserRateLimiter(rate, users)
	guard := middleware.NewPermissionGuard(table, roles)

	g := e.Group("/auth")
	g.POST("/signup", a.SignUp)
	g.POST("/signin", a.SignIn)
	// Refresh carries no access token by definition; it is metered but
	// not permission-guarded.
	g.POST("/refresh", a.Refresh, refreshAuth, limiter)

	g.POST("/me", a.Me, accessAuth, limiter, guard)
	g.POST("/changepassword", a.ChangePassword, accessAuth, limiter, guard)
	// Logout needs both tokens: the access token proves identity, the
	// refresh token is matched against the stored hash.
	g.POST("/logout", a.Logout, accessAuth, refreshAuth, limiter, guard)

	protected := e.Group("", accessAuth, limiter, guard)
	protected.POST("/roles", adm.CreateRole)
	protected.GET("/roles", adm.ListRoles)
	protected.POST("/permissions", adm.CreatePermission)
	protected.GET("/permissions", adm.ListPermissions)
	protected.POST("/role-users", adm.AssignRole)
	protected.DELETE("/role-users", adm.UnassignRole)
	protected.POST("/role-permissions", adm.GrantPermission)
	protected.DELETE("/role-permissions", adm.RevokePermission)
}
