package middleware

// identity.go defines helper functions shared across middleware and
// handlers. They pull values the auth middleware stored in the Echo
// context: the caller's user id, the raw refresh token, and individual
// token claims.

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated caller's id, or "" when the request
// carries no validated token.
func UserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}

// RefreshToken returns the raw refresh token stored by RefreshAuth.
func RefreshToken(c echo.Context) string {
	if v, ok := c.Get("refresh_token").(string); ok {
		return v
	}
	return ""
}

// TokenRemainingHits returns the remainingHits claim embedded in the
// validated token, or fallback when absent. JSON numbers decode as
// float64, hence the conversion.
func TokenRemainingHits(c echo.Context, fallback int) int {
	claims, ok := c.Get("claims").(jwt.MapClaims)
	if !ok {
		return fallback
	}
	if v, ok := claims["remainingHits"].(float64); ok {
		return int(v)
	}
	return fallback
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
