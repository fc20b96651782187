package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// Cookie names used for token transport. Tokens ride in httpOnly cookies
// rather than Authorization headers; the cookie expiry is deliberately
// longer than the token's signed expiry, so only the signature/expiry
// validation below decides whether a request is authenticated.
const (
	AccessCookie   = "access_token"
	RefreshCookie  = "refreshToken"
	ActivityCookie = "exp_limit"
	LoggedCookie   = "logged"
)

// AccessAuth returns an Echo middleware that extracts the access token
// from its cookie, validates signature and expiry against the access
// secret, and injects the claims into the request context. Handlers and
// downstream middleware read `c.Get("user_id")` and `c.Get("claims")`.
func AccessAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(AccessCookie)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"statusCode": http.StatusUnauthorized, "message": "missing access token"})
			}
			claims, err := parseHS256(cookie.Value, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"statusCode": http.StatusUnauthorized, "message": "invalid token"})
			}
			c.Set("user_id", stringClaim(claims, "id"))
			c.Set("claims", claims)
			return next(c)
		}
	}
}

// RefreshAuth is the refresh-token counterpart: it reads the refreshToken
// cookie, validates it against the refresh secret, and stores both the
// claims and the raw token (needed for the stored-hash comparison) in the
// context. An absent or malformed cookie is a 403, not a 401: possession
// of a refresh token is an authorization claim on an existing session.
func RefreshAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(RefreshCookie)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusForbidden, echo.Map{
					"statusCode": http.StatusForbidden, "message": "refresh token malformed"})
			}
			claims, err := parseHS256(cookie.Value, secret)
			if err != nil {
				return c.JSON(http.StatusForbidden, echo.Map{
					"statusCode": http.StatusForbidden, "message": "refresh token malformed"})
			}
			c.Set("user_id", stringClaim(claims, "id"))
			c.Set("claims", claims)
			c.Set("refresh_token", cookie.Value)
			return next(c)
		}
	}
}

// parseHS256 validates a token signed with HS256 and returns its claims.
// Tokens signed with any other method are rejected.
func parseHS256(raw, secret string) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return nil, echo.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.ErrUnauthorized
	}
	return claims, nil
}
