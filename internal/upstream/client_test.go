package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "tok", time.Second)
}

func TestClient_LoadEventNormalizes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /events/77/checkin-data", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"event": {"id": 77, "name": "Sexta Latina", "establishment_id": "3"},
			"reservations": [{"id": 1, "client_name": "Carla", "number_of_people": "2", "status": "confirmed", "checked_in": 1}],
			"guest_lists": [{"id": "7", "owner_name": "João", "total_guests": 10, "owner_checked_in": true,
				"guests": [{"id": 41, "name": "Fabio", "checked_in": "1", "entry_fee_kind": "dry_entry", "entry_fee_amount": 25.5}]}],
			"failed_sources": ["booths"]
		}`))
	})
	c := newTestClient(t, mux)

	raw, err := c.LoadEvent(context.Background(), "77")
	require.NoError(t, err)
	require.Equal(t, []string{"booths"}, raw.FailedSources)

	snap, drops := checkin.Normalize(raw)
	require.Empty(t, drops)
	require.Equal(t, "77", snap.Event.ID)
	require.True(t, snap.Records["reservation:1"].CheckedIn)
	require.Equal(t, 2, snap.Records["reservation:1"].People)
	fabio := snap.Records["list_guest:41"]
	require.Equal(t, "25.50", fabio.FeeAmount.StringFixed(2))
	require.Equal(t, []checkin.SourceKind{checkin.BoothGuest}, snap.FailedSources)
}

func TestClient_ActionPaths(t *testing.T) {
	var got []string
	var body actionBody
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id": 1, "checkin_time": "2026-10-16T22:00:00Z"}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()
	amount := decimal.RequireFromString("25.5")

	res, err := c.CheckIn(ctx, checkin.ActionRequest{
		EventID: "77", Kind: checkin.RestaurantGuest, ID: "41", ListID: "7",
		Fee: &checkin.FeeInput{Kind: checkin.DryEntry, Amount: &amount}, StaffID: "9",
	})
	require.NoError(t, err)
	require.Equal(t, "2026-10-16T22:00:00Z", res.CheckinTime)
	require.Equal(t, actionBody{EventID: "77", EntryFeeKind: "dry_entry", EntryFeeAmount: "25.50", StaffID: "9"}, body)

	_, err = c.CheckOut(ctx, checkin.ActionRequest{EventID: "77", Kind: checkin.TableReservation, ID: "1"})
	require.NoError(t, err)
	_, err = c.CheckIn(ctx, checkin.ActionRequest{EventID: "77", Kind: checkin.PromoterGuest, ID: "5"})
	require.NoError(t, err)
	_, err = c.CheckIn(ctx, checkin.ActionRequest{EventID: "77", Kind: checkin.BoothGuest, ID: "6"})
	require.NoError(t, err)
	_, err = c.CheckOut(ctx, checkin.ActionRequest{EventID: "77", ListID: "7", Owner: true})
	require.NoError(t, err)

	require.Equal(t, []string{
		"/guest-lists/7/guests/41/checkin",
		"/reservations/1/checkout",
		"/promoter-guests/5/checkin",
		"/booths/6/checkin",
		"/guest-lists/7/owner/checkout",
	}, got)
}

func TestClient_RemoteError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /reservations/1/checkin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message": "Reserva já fez check-in"}`))
	})
	mux.HandleFunc("GET /guest-lists/7/guests", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "lista não encontrada"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.CheckIn(context.Background(), checkin.ActionRequest{Kind: checkin.TableReservation, ID: "1"})
	var re *checkin.RemoteError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusConflict, re.Status)
	require.Equal(t, "Reserva já fez check-in", re.Error())

	_, err = c.Roster(context.Background(), "7")
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusNotFound, re.Status)
	require.Equal(t, "lista não encontrada", re.Message)
}

func TestClient_Queries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gift-rules", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "3", r.URL.Query().Get("establishment_id"))
		require.Equal(t, "77", r.URL.Query().Get("event_id"))
		_, _ = w.Write([]byte(`{"rules": [{"id": 1, "description": "Prosecco", "required_checkins": 5, "active": 1}]}`))
	})
	mux.HandleFunc("GET /guest-lists/7/gifts", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"gifts": [{"id": 9, "rule_id": 1, "description": "Prosecco", "required_checkins": 5}]}`))
	})
	mux.HandleFunc("GET /reservations", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "elisa", r.URL.Query().Get("q"))
		require.Equal(t, "2026-10-23", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"reservations": [{"id": 3, "client_name": "Elisa Prado", "status": "confirmed"}]}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	rules, err := c.GiftRules(ctx, "3", "77")
	require.NoError(t, err)
	require.Equal(t, []checkin.GiftRule{{ID: "1", Description: "Prosecco", RequiredCheckins: 5, Active: true}}, checkin.NormalizeGiftRules(rules))

	awards, err := c.GiftAwards(ctx, "7")
	require.NoError(t, err)
	require.Equal(t, "1", checkin.NormalizeGiftAwards(awards)[0].RuleID)

	found, err := c.SearchReservations(ctx, checkin.ReservationQuery{Date: "2026-10-23", Text: "elisa"})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestClient_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", "", 200*time.Millisecond)
	_, err := c.LoadEvent(context.Background(), "77")
	require.Error(t, err)
	var re *checkin.RemoteError
	require.False(t, errors.As(err, &re))
}
