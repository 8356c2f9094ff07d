// Package router registers the HTTP routes of the check-in API.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/handler"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/middleware"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db *sql.DB, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db, rdb))
}

// RegisterAuth registers login and token exchange under /v1/auth and the
// account endpoints under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)   // refresh_token in the body, or bearer for all sessions

	staff := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleManager),
	)
	staff.GET("/me", a.Me)

	mgr := e.Group("/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleManager),
	)
	mgr.POST("", a.CreateStaff)
	mgr.PATCH("/:userId/active", a.SetActive)
}

// CheckinMiddleware holds the optional Redis-backed middleware of the door
// routes. Nil fields are skipped.
type CheckinMiddleware struct {
	Limit echo.MiddlewareFunc // rate limits the actions
	Cache echo.MiddlewareFunc // caches gift rule reads
	Purge echo.MiddlewareFunc // drops the event's cached reads after a reload
}

// RegisterCheckin registers the door endpoints of an event.
func RegisterCheckin(e *echo.Echo, h *handler.CheckinHandler, jwtSecret string, mw CheckinMiddleware) {
	g := e.Group("/v1/events/:id",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleManager),
	)

	// ---- Reads ----
	g.GET("/overview", h.Overview)
	g.GET("/guests", h.Guests)
	g.GET("/export", h.Export)
	g.GET("/revenue", h.Revenue, middleware.RequireRole(model.RoleManager))
	g.GET("/gift-rules", h.GiftRules, optional(mw.Cache)...)
	g.GET("/guest-lists/:listId/gifts", h.GiftProgress)
	g.GET("/guest-lists/:listId/roster", h.Roster)
	g.GET("/reservations/search", h.SearchReservations)

	// ---- Actions ----
	acts := optional(mw.Limit)
	g.POST("/reload", h.Reload, optional(mw.Purge)...)
	g.POST("/checkins", h.CheckIn, acts...)
	g.POST("/checkouts", h.CheckOut, acts...)
	g.POST("/guest-lists/:listId/owner/checkin", h.OwnerCheckIn, acts...)
	g.POST("/guest-lists/:listId/owner/checkout", h.OwnerCheckOut, acts...)
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
