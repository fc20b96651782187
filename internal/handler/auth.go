package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/didi-project08/ecommerce-fullstack-tes/internal/config"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/middleware"
	"github.com/didi-project08/ecommerce-fullstack-tes/internal/service"
)

// AuthHandler exposes the auth lifecycle over HTTP. All state changes
// happen in the service; the handler's job is cookies, request binding
// and response shapes.
type AuthHandler struct {
	Cfg  config.Config
	Rate config.RateLimitConfig
	Svc  *service.AuthService
}

func NewAuthHandler(cfg config.Config, rate config.RateLimitConfig, svc *service.AuthService) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Rate: rate, Svc: svc}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	PasswordOld     string `json:"passwordOld"`
	PasswordNew     string `json:"passwordNew"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// SignUp registers a new account and returns its first token pair in the
// body. Cookies are not set here; the client signs in to open a session.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var in service.SignUpInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "invalid request body"})
	}
	if in.Fullname == "" || in.Username == "" || in.Email == "" || in.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "fullname, username, email and password are required"})
	}
	res, err := h.Svc.SignUp(c.Request().Context(), in, accessOf(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"statusCode": http.StatusCreated,
		"message":    "signup successfully.",
		"data": echo.Map{
			"id":        res.User.ID,
			"fullname":  res.User.Fullname,
			"username":  res.User.Username,
			"email":     res.User.Email,
			"createdAt": res.User.CreatedAt,
			"updatedAt": res.User.UpdatedAt,
		},
		"token": res.Pair,
	})
}

// SignIn opens a session: the pair rides out in httpOnly cookies and the
// body carries the access expiry so the client can schedule a refresh.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var in signInRequest
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "invalid request body"})
	}
	res, err := h.Svc.SignIn(c.Request().Context(), in.Email, in.Password, accessOf(c))
	if err != nil {
		return respondError(c, err)
	}
	setTokenCookies(c, res.Pair)
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "exp": res.Exp})
}

// Me returns the caller's profile, role and permissions. A soft-deleted
// account answers 200 with null data rather than an error.
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := h.Svc.Me(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"statusCode": http.StatusOK, "data": p})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var in changePasswordRequest
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"statusCode": http.StatusBadRequest, "message": "invalid request body"})
	}
	res, err := h.Svc.ChangePassword(c.Request().Context(), middleware.UserID(c),
		in.PasswordOld, in.PasswordNew, in.PasswordConfirm, accessOf(c))
	if err != nil {
		return respondError(c, err)
	}
	body := echo.Map{"statusCode": res.StatusCode, "message": res.Message}
	if res.User != nil {
		body["data"] = echo.Map{
			"id":       res.User.ID,
			"fullname": res.User.Fullname,
			"username": res.User.Username,
			"email":    res.User.Email,
		}
	}
	return c.JSON(res.StatusCode, body)
}

// Logout closes the session and drops the token cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	err := h.Svc.Logout(c.Request().Context(), middleware.UserID(c), middleware.RefreshToken(c), accessOf(c))
	if err != nil {
		return respondError(c, err)
	}
	clearTokenCookies(c)
	return c.JSON(http.StatusOK, echo.Map{
		"statusCode": http.StatusOK, "message": "successfully logged out."})
}

// Refresh rotates the token pair, or force-closes a session that went
// idle. The exp_limit cookie is the client-side activity timestamp; the
// rate limiter restarting the budget is what keeps it fresh, so a token
// whose embedded budget still matches the stored one marks an idle
// session.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var lastActivity int64
	hasActivity := false
	if cookie, err := c.Cookie(middleware.ActivityCookie); err == nil && cookie.Value != "" {
		if ms, err := strconv.ParseInt(cookie.Value, 10, 64); err == nil {
			lastActivity = ms
			hasActivity = true
		}
	}

	res, err := h.Svc.RefreshTokens(c.Request().Context(),
		middleware.UserID(c), middleware.RefreshToken(c),
		middleware.TokenRemainingHits(c, h.Rate.FallbackHits),
		lastActivity, hasActivity, accessOf(c))
	if err != nil {
		return respondError(c, err)
	}
	if res.AutoLogout {
		clearSessionCookies(c)
		return c.JSON(http.StatusOK, echo.Map{
			"statusCode": http.StatusOK, "message": "successfully logged out."})
	}
	setTokenCookies(c, res.Pair)
	if res.TouchActivity {
		c.SetCookie(authCookie(middleware.ActivityCookie,
			strconv.FormatInt(time.Now().UnixMilli(), 10)))
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "exp": res.Exp})
}
