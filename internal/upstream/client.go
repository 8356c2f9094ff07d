// Package upstream talks to the venue's remote REST API when the check-in
// service does not own the venue database itself.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// Client implements checkin.Upstream over HTTP with a bearer token.
type Client struct {
	base  string
	token string
	http  *http.Client
}

var _ checkin.Upstream = (*Client)(nil)

// New returns a client for the API rooted at base. timeout bounds every
// call on top of the caller's context.
func New(base, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// errorBody is the error shape of the venue API. Older endpoints use
// "error" instead of "message".
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Error
		}
		return &checkin.RemoteError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	// Ids and amounts stay json.Number so the normalizer sees them exactly.
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("upstream %s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *Client) LoadEvent(ctx context.Context, eventID string) (model.RawLoadResult, error) {
	var out model.RawLoadResult
	err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(eventID)+"/checkin-data", nil, nil, &out)
	return out, err
}

// actionBody is sent with every check-in and check-out.
type actionBody struct {
	EventID        string `json:"event_id"`
	EntryFeeKind   string `json:"entry_fee_kind,omitempty"`
	EntryFeeAmount string `json:"entry_fee_amount,omitempty"`
	StaffID        string `json:"staff_id,omitempty"`
}

// actionPath addresses the per-kind endpoint; every source has its own.
func actionPath(req checkin.ActionRequest, verb string) (string, error) {
	if req.Owner {
		return "/guest-lists/" + url.PathEscape(req.ListID) + "/owner/" + verb, nil
	}
	id := url.PathEscape(req.ID)
	switch req.Kind {
	case checkin.TableReservation:
		return "/reservations/" + id + "/" + verb, nil
	case checkin.RestaurantGuest:
		return "/guest-lists/" + url.PathEscape(req.ListID) + "/guests/" + id + "/" + verb, nil
	case checkin.PromoterGuest:
		return "/promoter-guests/" + id + "/" + verb, nil
	case checkin.BoothGuest:
		return "/booths/" + id + "/" + verb, nil
	}
	return "", fmt.Errorf("upstream: unknown record kind %q", req.Kind)
}

func (c *Client) action(ctx context.Context, req checkin.ActionRequest, verb string) (model.RawActionResult, error) {
	path, err := actionPath(req, verb)
	if err != nil {
		return model.RawActionResult{}, err
	}
	body := actionBody{EventID: req.EventID, StaffID: req.StaffID}
	if req.Fee != nil {
		body.EntryFeeKind = string(req.Fee.Kind)
		if req.Fee.Amount != nil {
			body.EntryFeeAmount = req.Fee.Amount.StringFixed(2)
		}
	}
	var out model.RawActionResult
	err = c.do(ctx, http.MethodPost, path, nil, body, &out)
	return out, err
}

func (c *Client) CheckIn(ctx context.Context, req checkin.ActionRequest) (model.RawActionResult, error) {
	return c.action(ctx, req, "checkin")
}

func (c *Client) CheckOut(ctx context.Context, req checkin.ActionRequest) (model.RawActionResult, error) {
	return c.action(ctx, req, "checkout")
}

func (c *Client) GiftRules(ctx context.Context, establishmentID, eventID string) ([]model.RawGiftRule, error) {
	q := url.Values{"establishment_id": {establishmentID}}
	if eventID != "" {
		q.Set("event_id", eventID)
	}
	var out struct {
		Rules []model.RawGiftRule `json:"rules"`
	}
	err := c.do(ctx, http.MethodGet, "/gift-rules", q, nil, &out)
	return out.Rules, err
}

func (c *Client) GiftAwards(ctx context.Context, listID string) ([]model.RawGiftAward, error) {
	var out struct {
		Gifts []model.RawGiftAward `json:"gifts"`
	}
	err := c.do(ctx, http.MethodGet, "/guest-lists/"+url.PathEscape(listID)+"/gifts", nil, nil, &out)
	return out.Gifts, err
}

func (c *Client) Roster(ctx context.Context, listID string) ([]model.RawListGuest, error) {
	var out struct {
		Guests []model.RawListGuest `json:"guests"`
	}
	err := c.do(ctx, http.MethodGet, "/guest-lists/"+url.PathEscape(listID)+"/guests", nil, nil, &out)
	return out.Guests, err
}

func (c *Client) SearchReservations(ctx context.Context, q checkin.ReservationQuery) ([]model.RawTableReservation, error) {
	v := url.Values{}
	if q.EstablishmentID != "" {
		v.Set("establishment_id", q.EstablishmentID)
	}
	if q.Date != "" {
		v.Set("date", q.Date)
	}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var out struct {
		Reservations []model.RawTableReservation `json:"reservations"`
	}
	err := c.do(ctx, http.MethodGet, "/reservations", v, nil, &out)
	return out.Reservations, err
}
