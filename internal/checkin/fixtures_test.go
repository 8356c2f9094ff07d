package checkin

import (
	"context"
	"errors"
	"sync"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// scenarioLoad is a small event: three table reservations (two inside) and
// one guest list whose owner João is inside with two roster guests (one
// inside).
func scenarioLoad() model.RawLoadResult {
	return model.RawLoadResult{
		Event: model.RawEvent{ID: 77, Name: "Sexta Latina", Date: "2026-10-16", EstablishmentID: "3"},
		TableReservations: []model.RawTableReservation{
			{ID: 1, ClientName: "Carla Souza", NumberOfPeople: 2, Status: "confirmed", CheckedIn: 1, CheckinTime: "2026-10-16 21:00:00"},
			{ID: 2, ClientName: "Diego Lima", NumberOfPeople: "4", Status: "", CheckedIn: "1"},
			{ID: 3, ClientName: "Elisa Prado", NumberOfPeople: 3, Status: "pending", CheckedIn: false},
		},
		GuestLists: []model.RawGuestList{
			{
				ID: 7, OwnerName: "João", TableNumber: "12", TotalGuests: 10,
				OwnerCheckedIn: true, OwnerCheckinTime: "2026-10-16T20:30:00Z",
				Guests: []model.RawListGuest{
					{ID: 41, Name: "Fabio Reis", CheckedIn: 1, EntryFeeKind: "dry_entry", EntryFeeAmount: "25.50"},
					{ID: 42, Name: "Gabi Nunes", CheckedIn: 0},
				},
			},
		},
		Summary: map[string]any{"total_reservations": 3},
	}
}

func loadedSnapshot() Snapshot {
	snap, _ := Normalize(scenarioLoad())
	return snap
}

type upstreamCall struct {
	action string
	req    ActionRequest
}

// fakeUpstream serves a mutable RawLoadResult and records every action.
// When block is set, CheckIn and CheckOut wait on it before answering.
type fakeUpstream struct {
	mu        sync.Mutex
	load      model.RawLoadResult
	rules     []model.RawGiftRule
	awards    map[string][]model.RawGiftAward
	rosters   map[string][]model.RawListGuest
	found     []model.RawTableReservation
	calls     []upstreamCall
	loads     int
	searches  int
	actionErr error
	loadErr   error
	block     chan struct{}
	entered   chan struct{}
	loadHook  func(n int)
}

func newFakeUpstream(load model.RawLoadResult) *fakeUpstream {
	return &fakeUpstream{
		load:    load,
		awards:  map[string][]model.RawGiftAward{},
		rosters: map[string][]model.RawListGuest{},
	}
}

func (f *fakeUpstream) LoadEvent(_ context.Context, _ string) (model.RawLoadResult, error) {
	f.mu.Lock()
	f.loads++
	n, hook, load, err := f.loads, f.loadHook, f.load, f.loadErr
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return load, err
}

func (f *fakeUpstream) act(ctx context.Context, action string, req ActionRequest) (model.RawActionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, upstreamCall{action: action, req: req})
	block, entered, err := f.block, f.entered, f.actionErr
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return model.RawActionResult{}, ctx.Err()
		}
	}
	if err != nil {
		return model.RawActionResult{}, err
	}
	return model.RawActionResult{ID: req.ID}, nil
}

func (f *fakeUpstream) CheckIn(ctx context.Context, req ActionRequest) (model.RawActionResult, error) {
	return f.act(ctx, ActivityCheckIn, req)
}

func (f *fakeUpstream) CheckOut(ctx context.Context, req ActionRequest) (model.RawActionResult, error) {
	return f.act(ctx, ActivityCheckOut, req)
}

func (f *fakeUpstream) GiftRules(context.Context, string, string) ([]model.RawGiftRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rules, nil
}

func (f *fakeUpstream) GiftAwards(_ context.Context, listID string) ([]model.RawGiftAward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.awards[listID], nil
}

func (f *fakeUpstream) Roster(_ context.Context, listID string) ([]model.RawListGuest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.rosters[listID]
	if !ok {
		return nil, errors.New("no roster")
	}
	return g, nil
}

func (f *fakeUpstream) SearchReservations(context.Context, ReservationQuery) ([]model.RawTableReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return f.found, nil
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []Activity
}

func (p *recordingPublisher) Publish(_ context.Context, a Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, a)
	return nil
}

func (p *recordingPublisher) ofType(typ string) []Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Activity
	for _, a := range p.sent {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}
