package checkin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

func newLoadedSession(t *testing.T, up *fakeUpstream, pub Publisher, opts Options) *Session {
	t.Helper()
	s := NewSession("77", up, NewMemoryGuard(), pub, zerolog.Nop(), opts)
	require.NoError(t, s.Reload(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func complimentary() *FeeInput { return &FeeInput{Kind: Complimentary} }

func TestSession_NotLoaded(t *testing.T) {
	s := NewSession("77", newFakeUpstream(scenarioLoad()), nil, nil, zerolog.Nop(), Options{})

	_, err := s.Overview()
	require.ErrorIs(t, err, ErrSessionNotLoaded)

	_, err = s.CheckIn(context.Background(), TableReservation, "3", nil, "")
	require.ErrorIs(t, err, ErrSessionNotLoaded)

	_, err = s.GiftProgress("7")
	require.ErrorIs(t, err, ErrSessionNotLoaded)
}

func TestSession_Overview(t *testing.T) {
	s := newLoadedSession(t, newFakeUpstream(scenarioLoad()), nil, Options{})

	ov, err := s.Overview()
	require.NoError(t, err)
	require.Equal(t, "Sexta Latina", ov.Event.Name)
	require.Equal(t, 6, ov.Stats.Total)
	require.Equal(t, 4, ov.Stats.CheckedIn)
	require.Equal(t, "25.5", ov.Revenue.Total.String())
	require.Equal(t, 0, ov.PendingActions)
	require.EqualValues(t, 3, ov.Summary["total_reservations"])
}

func TestSession_CheckIn(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	pub := &recordingPublisher{}
	s := newLoadedSession(t, up, pub, Options{})

	res, err := s.CheckIn(context.Background(), RestaurantGuest, "42", &FeeInput{Kind: DryEntry, Amount: amount("30")}, "staff-1")
	require.NoError(t, err)
	require.Equal(t, Applied, res.Outcome)
	require.True(t, res.Record.CheckedIn)
	require.NotNil(t, res.Progress)

	require.Len(t, up.calls, 1)
	call := up.calls[0]
	require.Equal(t, ActivityCheckIn, call.action)
	require.Equal(t, ActionRequest{EventID: "77", Kind: RestaurantGuest, ID: "42", ListID: "7", Fee: &FeeInput{Kind: DryEntry, Amount: amount("30")}, StaffID: "staff-1"}, call.req)

	sent := pub.ofType(ActivityCheckIn)
	require.Len(t, sent, 1)
	require.Equal(t, "42", sent[0].RecordID)
	require.Equal(t, "7", sent[0].ListID)
	require.Equal(t, "30.00", sent[0].Amount)
	require.NotEmpty(t, sent[0].ID)

	ov, err := s.Overview()
	require.NoError(t, err)
	require.Equal(t, 5, ov.Stats.CheckedIn)
	require.Equal(t, "55.5", ov.Revenue.Total.String())

	res, err = s.CheckIn(context.Background(), RestaurantGuest, "42", complimentary(), "staff-1")
	require.NoError(t, err)
	require.Equal(t, NoOp, res.Outcome)
	require.Len(t, up.calls, 1)
}

func TestSession_DuplicateCheckInDispatchesOnce(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{})
	up.block = make(chan struct{})
	up.entered = make(chan struct{}, 1)

	type result struct {
		res ActionResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := s.CheckIn(context.Background(), RestaurantGuest, "42", complimentary(), "")
		done <- result{res, err}
	}()
	<-up.entered

	res, err := s.CheckIn(context.Background(), RestaurantGuest, "42", complimentary(), "")
	require.NoError(t, err)
	require.Equal(t, Busy, res.Outcome)

	ov, err := s.Overview()
	require.NoError(t, err)
	require.Equal(t, 5, ov.Stats.CheckedIn, "optimistic state is visible while in flight")
	require.Equal(t, 1, ov.PendingActions)

	close(up.block)
	first := <-done
	require.NoError(t, first.err)
	require.Equal(t, Applied, first.res.Outcome)
	require.Equal(t, 1, up.callCount())
}

func TestSession_RollbackOnRejection(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	pub := &recordingPublisher{}
	s := newLoadedSession(t, up, pub, Options{})
	up.actionErr = &RemoteError{Status: 409, Message: "Convidado já fez check-in"}

	res, err := s.CheckIn(context.Background(), TableReservation, "3", nil, "")
	require.Error(t, err)
	require.Equal(t, NoOp, res.Outcome)
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, "Convidado já fez check-in", remote.Message)

	ov, err := s.Overview()
	require.NoError(t, err)
	require.Equal(t, 4, ov.Stats.CheckedIn)
	require.Zero(t, ov.PendingActions)
	require.Empty(t, pub.ofType(ActivityCheckIn))

	// The guard key was released, so staff can simply retry.
	up.actionErr = nil
	res, err = s.CheckIn(context.Background(), TableReservation, "3", nil, "")
	require.NoError(t, err)
	require.Equal(t, Applied, res.Outcome)
}

func TestSession_CheckOutNeedsConfirmation(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{})

	_, err := s.CheckOut(context.Background(), TableReservation, "1", false, "")
	require.ErrorIs(t, err, ErrConfirmationRequired)
	require.Zero(t, up.callCount())

	res, err := s.CheckOut(context.Background(), TableReservation, "1", true, "")
	require.NoError(t, err)
	require.Equal(t, Applied, res.Outcome)
	require.True(t, res.Record.CheckedOut)
}

func TestSession_OwnerCheckoutLocksList(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{})

	res, err := s.CheckOutOwner(context.Background(), "7", true, "")
	require.NoError(t, err)
	require.Equal(t, Applied, res.Outcome)
	require.True(t, res.Owner.CheckedOut)

	res, err = s.CheckIn(context.Background(), RestaurantGuest, "42", complimentary(), "")
	require.NoError(t, err)
	require.Equal(t, Locked, res.Outcome)

	res, err = s.CheckOut(context.Background(), RestaurantGuest, "41", true, "")
	require.NoError(t, err)
	require.Equal(t, Locked, res.Outcome)

	require.Equal(t, 1, up.callCount())
	require.True(t, up.calls[0].req.Owner)
}

func TestSession_UnknownRecord(t *testing.T) {
	s := newLoadedSession(t, newFakeUpstream(scenarioLoad()), nil, Options{})
	_, err := s.CheckIn(context.Background(), PromoterGuest, "42", complimentary(), "")
	require.ErrorIs(t, err, ErrUnknownRecord)

	_, err = s.CheckInOwner(context.Background(), "404", "")
	require.ErrorIs(t, err, ErrUnknownGuestList)
}

func TestSession_StaleReloadIsDiscarded(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{})

	fresh := scenarioLoad()
	fresh.TableReservations = append(fresh.TableReservations, model.RawTableReservation{ID: 4, ClientName: "Late Larissa"})
	up.loadHook = func(n int) {
		if n != 2 {
			return
		}
		// A newer reload starts and finishes while this one is in flight.
		up.mu.Lock()
		up.load = fresh
		up.mu.Unlock()
		require.NoError(t, s.Reload(context.Background()))
	}

	require.NoError(t, s.Reload(context.Background()))
	rows, err := s.Search(Filter{Query: "larissa"})
	require.NoError(t, err)
	require.Len(t, rows, 1, "the older response must not overwrite the newer one")
}

func TestSession_ReloadKeepsPendingPatches(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{})
	up.block = make(chan struct{})
	up.entered = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.CheckIn(context.Background(), TableReservation, "3", nil, "")
	}()
	<-up.entered

	require.NoError(t, s.Reload(context.Background()))
	ov, err := s.Overview()
	require.NoError(t, err)
	require.Equal(t, 5, ov.Stats.CheckedIn)

	close(up.block)
	<-done
}

func TestSession_GiftAwardsAreAnnouncedOnce(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	up.rules = []model.RawGiftRule{
		{ID: "r1", Description: "Drinks", RequiredCheckins: 1},
		{ID: "r2", Description: "Bottle", RequiredCheckins: 4},
	}
	pub := &recordingPublisher{}
	s := newLoadedSession(t, up, pub, Options{})
	require.Len(t, s.GiftRules(), 2)

	award := model.RawGiftAward{ID: 1, RuleID: "r1", Description: "Drinks", RequiredCheckins: 1}
	up.awards["7"] = []model.RawGiftAward{award}

	res, err := s.CheckIn(context.Background(), RestaurantGuest, "42", complimentary(), "staff-1")
	require.NoError(t, err)
	require.Len(t, res.NewlyAwarded, 1)
	require.Equal(t, 2, res.Progress.Count)
	require.Equal(t, 4, res.Progress.NextRule.RequiredCheckins)
	require.Equal(t, 50, res.Progress.Percent)
	require.Len(t, pub.ofType(ActivityGiftAwarded), 1)

	// Reconciliation passes do not announce it again, even if the server
	// drops the award and later reports it under a new id.
	require.NoError(t, s.Reload(context.Background()))
	up.mu.Lock()
	up.awards["7"] = nil
	up.mu.Unlock()
	require.NoError(t, s.Reload(context.Background()))
	up.mu.Lock()
	up.awards["7"] = []model.RawGiftAward{{ID: 2, RuleID: "r1"}}
	up.mu.Unlock()
	require.NoError(t, s.Reload(context.Background()))

	require.Len(t, pub.ofType(ActivityGiftAwarded), 1)
	p, err := s.GiftProgress("7")
	require.NoError(t, err)
	require.Len(t, p.Awards, 1)

	_, err = s.GiftProgress("404")
	require.ErrorIs(t, err, ErrUnknownGuestList)
}

func TestSession_AwardsKnownAtFirstLoadAreNotAnnounced(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	up.rules = []model.RawGiftRule{{ID: "r1", RequiredCheckins: 1}}
	up.awards["7"] = []model.RawGiftAward{{ID: 1, RuleID: "r1"}}
	pub := &recordingPublisher{}
	s := newLoadedSession(t, up, pub, Options{})

	require.Empty(t, pub.ofType(ActivityGiftAwarded))
	p, err := s.GiftProgress("7")
	require.NoError(t, err)
	require.Len(t, p.Awards, 1)
}

func TestSession_Roster(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{})
	up.rosters["7"] = []model.RawListGuest{
		{ID: 41, Name: "Fabio Reis", CheckedIn: 1, EntryFeeKind: "dry_entry", EntryFeeAmount: "25.50"},
		{ID: 42, Name: "Gabi Nunes", CheckedIn: 1, EntryFeeKind: "vip"},
		{ID: 43, Name: "Helena Costa"},
	}

	rows, err := s.Roster(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, []string{"list_guest:43", "list_guest:41", "list_guest:42", "owner:7"}, keys(rows))

	ov, err := s.Overview()
	require.NoError(t, err)
	require.Equal(t, 7, ov.Stats.Total)
	require.Equal(t, 5, ov.Stats.CheckedIn)

	_, err = s.Roster(context.Background(), "404")
	require.ErrorIs(t, err, ErrUnknownGuestList)
}

func TestSession_LookupReservations(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{})
	up.found = []model.RawTableReservation{
		{ID: 90, ClientName: "Walk In", ReservationDate: "2026-10-17"},
		{ID: 91, ClientName: "Dropped", Status: "cancelada"},
	}

	rows, fresh, err := s.LookupReservations(context.Background(), ReservationQuery{Date: "2026-10-17"})
	require.NoError(t, err)
	require.True(t, fresh)
	require.Equal(t, []string{"reservation:90"}, keys(rows))
}

func TestSession_LookupReservationsDebounce(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{LookupDebounce: 100 * time.Millisecond})
	up.found = []model.RawTableReservation{{ID: 90, ClientName: "Walk In"}}

	type result struct {
		rows  []Row
		fresh bool
		err   error
	}
	first := make(chan result, 1)
	go func() {
		rows, fresh, err := s.LookupReservations(context.Background(), ReservationQuery{Text: "wal"})
		first <- result{rows, fresh, err}
	}()
	time.Sleep(20 * time.Millisecond)

	rows, fresh, err := s.LookupReservations(context.Background(), ReservationQuery{Text: "walk"})
	require.NoError(t, err)
	require.True(t, fresh)
	require.Equal(t, []string{"reservation:90"}, keys(rows))

	old := <-first
	require.NoError(t, old.err)
	require.False(t, old.fresh)
	require.Nil(t, old.rows)

	up.mu.Lock()
	defer up.mu.Unlock()
	require.Equal(t, 1, up.searches, "the superseded search never reached the upstream")
}

func TestSession_LookupReservationsCancelledWhileWaiting(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{LookupDebounce: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, fresh, err := s.LookupReservations(ctx, ReservationQuery{Text: "walk"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, fresh)
	require.Zero(t, up.searches)
}

func TestSession_ExportAndSearch(t *testing.T) {
	s := newLoadedSession(t, newFakeUpstream(scenarioLoad()), nil, Options{})

	rows, err := s.Export(Filter{Status: Pending})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	found, err := s.Search(Filter{Query: "gabi"})
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestSession_ReconcilesAfterAction(t *testing.T) {
	up := newFakeUpstream(scenarioLoad())
	s := newLoadedSession(t, up, nil, Options{ReconcileDebounce: 10 * time.Millisecond})

	_, err := s.CheckIn(context.Background(), TableReservation, "3", nil, "")
	require.NoError(t, err)
	_, err = s.CheckIn(context.Background(), RestaurantGuest, "42", complimentary(), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		up.mu.Lock()
		defer up.mu.Unlock()
		return up.loads >= 2
	}, time.Second, 5*time.Millisecond)

	// Debounced: both actions share one reload.
	time.Sleep(50 * time.Millisecond)
	up.mu.Lock()
	loads := up.loads
	up.mu.Unlock()
	require.Equal(t, 2, loads)
}
