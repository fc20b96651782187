package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/middleware"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/service"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/utils"
)

// cookieLifetime is how long the token cookies live in the browser. It is
// much longer than either token's signed expiry on purpose: the server
// decides validity by signature/expiry, never by cookie presence.
const cookieLifetime = 365 * 24 * time.Hour

// respondError translates service errors into the structured JSON error
// body. Unknown errors become an opaque 500; no internals leak into
// response bodies.
func respondError(c echo.Context, err error) error {
	var ae *service.Error
	if errors.As(err, &ae) {
		return c.JSON(ae.Status, echo.Map{
			"statusCode": ae.Status, "error": ae.Code, "message": ae.Message})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"statusCode": http.StatusInternalServerError, "message": "internal server error"})
}

// accessOf collects the request metadata recorded in the audit trail.
func accessOf(c echo.Context) service.Access {
	return service.Access{
		IP:        c.RealIP(),
		Method:    c.Request().Method,
		URL:       c.Request().RequestURI,
		UserAgent: c.Request().UserAgent(),
	}
}

func authCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(cookieLifetime),
	}
}

func expiredCookie(name string) *http.Cookie {
	return &http.Cookie{Name: name, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1}
}

// setTokenCookies installs a freshly issued pair.
func setTokenCookies(c echo.Context, pair utils.TokenPair) {
	c.SetCookie(authCookie(middleware.AccessCookie, pair.Access))
	c.SetCookie(authCookie(middleware.RefreshCookie, pair.Refresh))
}

// clearTokenCookies removes the pair; clearSessionCookies additionally
// drops the activity and logged cookies on forced logout.
func clearTokenCookies(c echo.Context) {
	c.SetCookie(expiredCookie(middleware.AccessCookie))
	c.SetCookie(expiredCookie(middleware.RefreshCookie))
}

func clearSessionCookies(c echo.Context) {
	c.SetCookie(expiredCookie(middleware.LoggedCookie))
	c.SetCookie(expiredCookie(middleware.ActivityCookie))
	clearTokenCookies(c)
}
