package handler

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/middleware"
)

// CheckinHandler serves the door screens of one event at a time. Every
// route carries the event id; its session is loaded on first use.
type CheckinHandler struct {
	Sessions *checkin.Manager
	Log      zerolog.Logger
}

func NewCheckinHandler(m *checkin.Manager, log zerolog.Logger) *CheckinHandler {
	return &CheckinHandler{Sessions: m, Log: log.With().Str("component", "handler").Logger()}
}

type checkinReq struct {
	Kind string            `json:"kind"`
	ID   string            `json:"id"`
	Fee  *checkin.FeeInput `json:"fee,omitempty"`
}

type checkoutReq struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

type ownerCheckoutReq struct {
	Confirmed bool `json:"confirmed"`
}

// session resolves the :id event, loading it on first use.
func (h *CheckinHandler) session(c echo.Context) (*checkin.Session, error) {
	return h.Sessions.Session(c.Request().Context(), strings.TrimSpace(c.Param("id")))
}

func (h *CheckinHandler) fail(c echo.Context, err error) error {
	if statusOf(err) >= 500 {
		h.Log.Error().Err(err).Str("event_id", c.Param("id")).Str("route", c.Path()).Msg("request failed")
	}
	return fail(c, err)
}

// GET /v1/events/:id/overview
func (h *CheckinHandler) Overview(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	ov, err := s.Overview()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ov)
}

// filterFrom reads ?q=&kind=a,b&status=&include_cancelled=.
func filterFrom(c echo.Context) (checkin.Filter, error) {
	f := checkin.Filter{Query: c.QueryParam("q")}
	if raw := c.QueryParam("kind"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			rk := checkin.RowKind(k)
			if rk != checkin.OwnerRow && !checkin.SourceKind(k).Valid() {
				return f, echo.NewHTTPError(http.StatusBadRequest, "unknown kind "+k)
			}
			f.Kinds = append(f.Kinds, rk)
		}
	}
	switch st := checkin.Status(c.QueryParam("status")); st {
	case "", checkin.Pending, checkin.CheckedIn, checkin.CheckedOut:
		f.Status = st
	default:
		return f, echo.NewHTTPError(http.StatusBadRequest, "status must be pending, checked_in or checked_out")
	}
	if raw := c.QueryParam("include_cancelled"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "include_cancelled must be a boolean")
		}
		f.IncludeCancelled = b
	}
	return f, nil
}

func badFilter(c echo.Context, err error) error {
	if he, ok := err.(*echo.HTTPError); ok {
		return c.JSON(he.Code, echo.Map{"error": he.Message})
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

// GET /v1/events/:id/guests
func (h *CheckinHandler) Guests(c echo.Context) error {
	f, err := filterFrom(c)
	if err != nil {
		return badFilter(c, err)
	}
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	rows, err := s.Search(f)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rows": rows, "count": len(rows)})
}

// GET /v1/events/:id/export, JSON by default or CSV with ?format=csv.
func (h *CheckinHandler) Export(c echo.Context) error {
	f, err := filterFrom(c)
	if err != nil {
		return badFilter(c, err)
	}
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	rows, err := s.Export(f)
	if err != nil {
		return h.fail(c, err)
	}
	if c.QueryParam("format") != "csv" {
		return c.JSON(http.StatusOK, rows)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="event-`+s.EventID()+`.csv"`)
	res.WriteHeader(http.StatusOK)
	w := csv.NewWriter(res)
	_ = w.Write(checkin.ExportHeader)
	for _, r := range rows {
		_ = w.Write([]string{r.Date, r.Time, r.Name, r.Table, r.Area, r.Phone, strconv.Itoa(r.People), r.Status, r.Notes})
	}
	w.Flush()
	return w.Error()
}

// GET /v1/events/:id/revenue
func (h *CheckinHandler) Revenue(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	ledger, err := s.Revenue()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ledger)
}

// GET /v1/events/:id/gift-rules
func (h *CheckinHandler) GiftRules(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rules": s.GiftRules()})
}

// GET /v1/events/:id/guest-lists/:listId/gifts
func (h *CheckinHandler) GiftProgress(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	p, err := s.GiftProgress(c.Param("listId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// GET /v1/events/:id/guest-lists/:listId/roster
func (h *CheckinHandler) Roster(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	rows, err := s.Roster(c.Request().Context(), c.Param("listId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rows": rows, "count": len(rows)})
}

// GET /v1/events/:id/reservations/search?date=&q=&limit=
func (h *CheckinHandler) SearchReservations(c echo.Context) error {
	q := checkin.ReservationQuery{
		EstablishmentID: c.QueryParam("establishment_id"),
		Date:            c.QueryParam("date"),
		Text:            strings.TrimSpace(c.QueryParam("q")),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be a positive integer"})
		}
		q.Limit = n
	}
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	if q.Date == "" {
		if ev, err := s.Event(); err == nil {
			q.Date = ev.Date
		}
	}
	rows, fresh, err := s.LookupReservations(c.Request().Context(), q)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rows": rows, "count": len(rows), "stale": !fresh})
}

// POST /v1/events/:id/reload
func (h *CheckinHandler) Reload(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := s.Reload(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	ov, err := s.Overview()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ov)
}

// POST /v1/events/:id/checkins
func (h *CheckinHandler) CheckIn(c echo.Context) error {
	var req checkinReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	kind := checkin.SourceKind(req.Kind)
	if !kind.Valid() || strings.TrimSpace(req.ID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind and id required"})
	}
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	res, err := s.CheckIn(c.Request().Context(), kind, strings.TrimSpace(req.ID), req.Fee, middleware.StaffID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// POST /v1/events/:id/checkouts
func (h *CheckinHandler) CheckOut(c echo.Context) error {
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	kind := checkin.SourceKind(req.Kind)
	if !kind.Valid() || strings.TrimSpace(req.ID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind and id required"})
	}
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	res, err := s.CheckOut(c.Request().Context(), kind, strings.TrimSpace(req.ID), req.Confirmed, middleware.StaffID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// POST /v1/events/:id/guest-lists/:listId/owner/checkin
func (h *CheckinHandler) OwnerCheckIn(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	res, err := s.CheckInOwner(c.Request().Context(), c.Param("listId"), middleware.StaffID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// POST /v1/events/:id/guest-lists/:listId/owner/checkout
func (h *CheckinHandler) OwnerCheckOut(c echo.Context) error {
	var req ownerCheckoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	s, err := h.session(c)
	if err != nil {
		return h.fail(c, err)
	}
	res, err := s.CheckOutOwner(c.Request().Context(), c.Param("listId"), req.Confirmed, middleware.StaffID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
