// Package middleware holds the echo middleware shared by the staff API:
// bearer authentication, role checks, Redis rate limiting and response
// caching, and request logging.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/auth"
)

// Context keys set by JWTAuth.
const (
	KeyUserID = "user_id" // decimal user id as string
	KeyRole   = "role"
	KeyEmail  = "email"
)

// JWTAuth validates a Bearer access token and stores its claims in the
// context under KeyUserID, KeyRole and KeyEmail.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(h, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			claims, err := auth.ParseAccessToken(secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(KeyUserID, strconv.FormatUint(claims.UserID, 10))
			c.Set(KeyRole, claims.Role)
			c.Set(KeyEmail, claims.Email)
			return next(c)
		}
	}
}
