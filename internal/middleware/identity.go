package middleware

import "github.com/labstack/echo/v4"

// StaffID returns the authenticated user id, or "" on public routes.
func StaffID(c echo.Context) string {
	s, _ := c.Get(KeyUserID).(string)
	return s
}

// subject identifies the caller for rate-limit keys.
func subject(c echo.Context) string {
	if s := StaffID(c); s != "" {
		return s
	}
	return "anon"
}
