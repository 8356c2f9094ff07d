package checkin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// Options tune a Session.
type Options struct {
	// InflightTTL bounds one upstream action. The guard key is leased for
	// the same duration so it is freed even if the process loses track.
	InflightTTL time.Duration
	// ReconcileDebounce delays the background reload that follows a
	// confirmed action. Zero or less disables it.
	ReconcileDebounce time.Duration
	// ReloadTimeout bounds a background reload.
	ReloadTimeout time.Duration
	// LookupDebounce is how long a reservation search waits for a newer
	// one before querying the upstream. Zero or less disables it.
	LookupDebounce time.Duration
}

func (o Options) withDefaults() Options {
	if o.InflightTTL <= 0 {
		o.InflightTTL = 10 * time.Second
	}
	if o.ReloadTimeout <= 0 {
		o.ReloadTimeout = 30 * time.Second
	}
	return o
}

// ActionResult is what a check-in or check-out did. Record is set for
// guest records, Owner for guest list owners.
type ActionResult struct {
	Outcome      Outcome      `json:"outcome"`
	Record       *GuestRecord `json:"record,omitempty"`
	Owner        *Owner       `json:"owner,omitempty"`
	Progress     *Progress    `json:"gift_progress,omitempty"`
	NewlyAwarded []GiftAward  `json:"newly_awarded,omitempty"`
}

// Overview is the dashboard of one event.
type Overview struct {
	Event          Event          `json:"event"`
	Stats          Stats          `json:"stats"`
	Revenue        RevenueLedger  `json:"revenue"`
	Summary        map[string]any `json:"summary,omitempty"`
	FailedSources  []SourceKind   `json:"failed_sources,omitempty"`
	PendingActions int            `json:"pending_actions"`
	LoadedAt       time.Time      `json:"loaded_at"`
}

// Session is the working set of one event: the server snapshot, the
// optimistic overlay on top of it and the gift bookkeeping. It is safe for
// concurrent use; upstream calls are made without holding the lock.
type Session struct {
	eventID string
	up      Upstream
	guard   Guard
	pub     Publisher
	log     zerolog.Logger
	opts    Options
	now     func() time.Time
	gens    *Generations
	loadMu  sync.Mutex

	mu       sync.Mutex
	server   Snapshot
	loaded   bool
	loadedAt time.Time
	overlay  *Overlay
	rules    []GiftRule
	awards   *AwardBook
	lastUsed time.Time
	timer    *time.Timer
	closed   bool
}

// NewSession returns an unloaded session for eventID. A nil guard or
// publisher falls back to an in-process guard and a silent publisher.
func NewSession(eventID string, up Upstream, guard Guard, pub Publisher, log zerolog.Logger, opts Options) *Session {
	if guard == nil {
		guard = NewMemoryGuard()
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Session{
		eventID:  eventID,
		up:       up,
		guard:    guard,
		pub:      pub,
		log:      log.With().Str("event_id", eventID).Logger(),
		opts:     opts.withDefaults(),
		now:      time.Now,
		gens:     NewGenerations(),
		overlay:  NewOverlay(),
		awards:   NewAwardBook(),
		lastUsed: time.Now(),
	}
}

// EventID returns the event the session works on.
func (s *Session) EventID() string { return s.eventID }

// Loaded reports whether a reload has completed at least once.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LastUsed returns when the session was last read or written.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// EnsureLoaded performs the first reload unless one already completed.
// Concurrent callers wait for the same load.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.Loaded() {
		return nil
	}
	return s.Reload(ctx)
}

// Reload refetches everything and replaces the server snapshot. A reload
// superseded by a later one, or by a confirmed action, is discarded
// without error.
func (s *Session) Reload(ctx context.Context) error {
	gen := s.gens.Next(ClassReload)

	raw, err := s.up.LoadEvent(ctx, s.eventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", s.eventID, err)
	}
	snap, drops := Normalize(raw)
	for _, d := range drops {
		s.log.Debug().Str("kind", string(d.Kind)).Str("id", d.ID).Str("reason", d.Reason).Msg("record dropped")
	}
	if snap.Event.ID == "" {
		snap.Event.ID = s.eventID
	}
	if len(snap.FailedSources) > 0 {
		s.log.Warn().Interface("sources", snap.FailedSources).Msg("partial load")
	}

	s.mu.Lock()
	rules := s.rules
	first := !s.loaded
	withAwards := map[string]bool{}
	for _, l := range snap.GuestLists() {
		if len(s.awards.Known(l.ID)) > 0 {
			withAwards[l.ID] = true
		}
	}
	s.mu.Unlock()

	if rawRules, err := s.up.GiftRules(ctx, snap.Event.EstablishmentID, snap.Event.ID); err != nil {
		s.log.Warn().Err(err).Msg("gift rules unavailable, keeping previous")
	} else {
		rules = NormalizeGiftRules(rawRules)
	}

	fetched := map[string][]GiftAward{}
	if len(rules) > 0 {
		lowest := rules[0].RequiredCheckins
		for _, l := range snap.GuestLists() {
			if snap.CheckedInRoster(l.ID) < lowest && !withAwards[l.ID] {
				continue
			}
			rawAwards, err := s.up.GiftAwards(ctx, l.ID)
			if err != nil {
				s.log.Warn().Err(err).Str("guest_list_id", l.ID).Msg("gift awards unavailable")
				continue
			}
			fetched[l.ID] = NormalizeGiftAwards(rawAwards)
		}
	}

	s.mu.Lock()
	if !s.gens.Current(ClassReload, gen) {
		s.mu.Unlock()
		s.log.Debug().Uint64("generation", gen).Msg("stale reload discarded")
		return nil
	}
	s.server = snap
	s.loaded = true
	s.loadedAt = s.now()
	s.lastUsed = s.loadedAt
	s.rules = rules
	s.overlay.Rebase()
	fresh := map[string][]GiftAward{}
	for listID, awards := range fetched {
		if n := s.awards.Merge(listID, awards); len(n) > 0 {
			fresh[listID] = n
		}
	}
	s.mu.Unlock()

	s.log.Info().Int("records", len(snap.Records)).Int("guest_lists", len(snap.Lists)).Int("dropped", snap.Dropped).Msg("event reloaded")

	// Awards present at the first load were granted before this session
	// existed; only later ones are news.
	if !first {
		for listID, awards := range fresh {
			s.publishAwards(ctx, listID, "", awards)
		}
	}
	return nil
}

// CheckIn checks a guest record in. fee is required for roster and
// promoter guests and ignored for the other kinds.
func (s *Session) CheckIn(ctx context.Context, kind SourceKind, id string, fee *FeeInput, staffID string) (ActionResult, error) {
	r, err := s.lookup(kind, id)
	if err != nil {
		return ActionResult{Outcome: NoOp}, err
	}
	key := r.Key()
	return s.run(ctx, action{
		activity: ActivityCheckIn,
		guardKey: GuardKey(ActivityCheckIn, string(kind), r.GuestListID, id),
		req:      ActionRequest{EventID: s.eventID, Kind: kind, ID: id, ListID: r.GuestListID, Fee: fee, StaffID: staffID},
		transition: func(snap Snapshot, at time.Time) (ActionResult, error) {
			next, out, err := CheckIn(snap, key, fee, at)
			return ActionResult{Outcome: out, Record: &next}, err
		},
	})
}

// CheckOut checks a guest record out. confirmed must be set; staff are
// asked before anyone is marked as gone.
func (s *Session) CheckOut(ctx context.Context, kind SourceKind, id string, confirmed bool, staffID string) (ActionResult, error) {
	r, err := s.lookup(kind, id)
	if err != nil {
		return ActionResult{Outcome: NoOp}, err
	}
	key := r.Key()
	return s.run(ctx, action{
		activity: ActivityCheckOut,
		guardKey: GuardKey(ActivityCheckOut, string(kind), r.GuestListID, id),
		req:      ActionRequest{EventID: s.eventID, Kind: kind, ID: id, ListID: r.GuestListID, StaffID: staffID},
		transition: func(snap Snapshot, at time.Time) (ActionResult, error) {
			next, out, err := CheckOut(snap, key, confirmed, at)
			return ActionResult{Outcome: out, Record: &next}, err
		},
	})
}

// CheckInOwner checks the owner of a guest list in.
func (s *Session) CheckInOwner(ctx context.Context, listID, staffID string) (ActionResult, error) {
	return s.run(ctx, action{
		activity: ActivityCheckIn,
		guardKey: GuardKey(ActivityCheckIn, string(OwnerRow), listID),
		req:      ActionRequest{EventID: s.eventID, ListID: listID, Owner: true, StaffID: staffID},
		transition: func(snap Snapshot, at time.Time) (ActionResult, error) {
			o, out, err := CheckInOwner(snap, listID, at)
			return ActionResult{Outcome: out, Owner: &o}, err
		},
	})
}

// CheckOutOwner checks the owner of a guest list out, concluding the list.
func (s *Session) CheckOutOwner(ctx context.Context, listID string, confirmed bool, staffID string) (ActionResult, error) {
	return s.run(ctx, action{
		activity: ActivityCheckOut,
		guardKey: GuardKey(ActivityCheckOut, string(OwnerRow), listID),
		req:      ActionRequest{EventID: s.eventID, ListID: listID, Owner: true, StaffID: staffID},
		transition: func(snap Snapshot, at time.Time) (ActionResult, error) {
			o, out, err := CheckOutOwner(snap, listID, confirmed, at)
			return ActionResult{Outcome: out, Owner: &o}, err
		},
	})
}

type action struct {
	activity   string
	guardKey   string
	req        ActionRequest
	transition func(Snapshot, time.Time) (ActionResult, error)
}

func (s *Session) lookup(kind SourceKind, id string) (GuestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return GuestRecord{}, ErrSessionNotLoaded
	}
	s.lastUsed = s.now()
	r, ok := s.server.Records[recordKey(kind, id)]
	if !ok {
		return GuestRecord{}, ErrUnknownRecord
	}
	return r, nil
}

// run applies a transition optimistically, dispatches it upstream and
// either confirms or rolls it back. Only one request per guard key is ever
// outstanding; a second caller gets Busy.
func (s *Session) run(ctx context.Context, a action) (ActionResult, error) {
	release, ok, err := s.guard.Acquire(ctx, a.guardKey, s.opts.InflightTTL)
	if err != nil {
		return ActionResult{Outcome: NoOp}, fmt.Errorf("acquire %s: %w", a.guardKey, err)
	}
	if !ok {
		s.log.Debug().Str("key", a.guardKey).Msg("action already in flight")
		return ActionResult{Outcome: Busy}, nil
	}
	defer release()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ActionResult{Outcome: NoOp}, ErrSessionNotLoaded
	}
	s.lastUsed = s.now()
	res, err := a.transition(s.overlay.Effective(s.server), s.now())
	if err != nil || res.Outcome != Applied {
		s.mu.Unlock()
		return res, err
	}
	var m *Mutation
	if res.Record != nil {
		m = s.overlay.PatchRecord(*res.Record)
	} else {
		m = s.overlay.PatchOwner(a.req.ListID, *res.Owner)
	}
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.opts.InflightTTL)
	var raw model.RawActionResult
	if a.activity == ActivityCheckIn {
		raw, err = s.up.CheckIn(cctx, a.req)
	} else {
		raw, err = s.up.CheckOut(cctx, a.req)
	}
	cancel()
	if err != nil {
		s.mu.Lock()
		m.Rollback()
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("key", a.guardKey).Msg("action rejected, rolled back")
		return ActionResult{Outcome: NoOp}, fmt.Errorf("%s %s: %w", a.activity, a.guardKey, err)
	}

	at := stamp(&res, a.activity, raw)
	s.mu.Lock()
	m.Confirm(res.Record, res.Owner)
	s.mu.Unlock()
	// A reload that started before the server accepted this action would
	// bring back the old state.
	s.gens.Next(ClassReload)

	s.publish(ctx, activityOf(a, res, at))
	if res.Record != nil && res.Record.Kind == RestaurantGuest && res.Record.GuestListID != "" {
		p := s.refreshAwards(ctx, res.Record.GuestListID, a.req.StaffID)
		res.Progress = &p
		res.NewlyAwarded = p.NewlyAwarded
	}
	s.scheduleReconcile()
	return res, nil
}

// stamp replaces the local timestamp with the server's when it reports one.
func stamp(res *ActionResult, activity string, raw model.RawActionResult) time.Time {
	ts := raw.CheckinTime
	if activity == ActivityCheckOut {
		ts = raw.CheckoutTime
	}
	t := parseTimestamp(ts)
	switch {
	case res.Record != nil && activity == ActivityCheckIn:
		if t != nil {
			res.Record.CheckinAt = t
		}
		return *res.Record.CheckinAt
	case res.Record != nil:
		if t != nil {
			res.Record.CheckoutAt = t
		}
		return *res.Record.CheckoutAt
	case activity == ActivityCheckIn:
		if t != nil {
			res.Owner.CheckinAt = t
		}
		return *res.Owner.CheckinAt
	default:
		if t != nil {
			res.Owner.CheckoutAt = t
		}
		return *res.Owner.CheckoutAt
	}
}

func activityOf(a action, res ActionResult, at time.Time) Activity {
	act := Activity{
		Type:    a.activity,
		EventID: a.req.EventID,
		ListID:  a.req.ListID,
		At:      at,
		StaffID: a.req.StaffID,
	}
	if res.Record != nil {
		act.Kind = string(res.Record.Kind)
		act.RecordID = res.Record.ID
		act.Name = res.Record.DisplayName
		act.FeeKind = res.Record.FeeKind
		if res.Record.FeeAmount != nil {
			act.Amount = res.Record.FeeAmount.StringFixed(2)
		}
	} else {
		act.Kind = string(OwnerRow)
		act.RecordID = a.req.ListID
		act.Name = res.Owner.Name
	}
	return act
}

// refreshAwards refetches the awards of a list after a roster check-in and
// reports the awards seen for the first time.
func (s *Session) refreshAwards(ctx context.Context, listID, staffID string) Progress {
	var refreshed []GiftAward
	raw, err := s.up.GiftAwards(ctx, listID)
	if err != nil {
		s.log.Warn().Err(err).Str("guest_list_id", listID).Msg("gift awards unavailable")
	} else {
		refreshed = NormalizeGiftAwards(raw)
	}

	s.mu.Lock()
	count := s.overlay.Effective(s.server).CheckedInRoster(listID)
	known := s.awards.Known(listID)
	s.awards.Merge(listID, refreshed)
	p := ComputeProgress(listID, count, s.rules, known, refreshed)
	s.mu.Unlock()

	if len(p.NewlyAwarded) > 0 {
		s.publishAwards(ctx, listID, staffID, p.NewlyAwarded)
	}
	return p
}

func (s *Session) publishAwards(ctx context.Context, listID, staffID string, awards []GiftAward) {
	for i := range awards {
		a := awards[i]
		at := s.now().UTC()
		if a.AwardedAt != nil {
			at = *a.AwardedAt
		}
		s.log.Info().Str("guest_list_id", listID).Str("rule_id", a.RuleID).Str("gift", a.Description).Msg("gift awarded")
		s.publish(ctx, Activity{
			Type:    ActivityGiftAwarded,
			EventID: s.eventID,
			ListID:  listID,
			At:      at,
			StaffID: staffID,
			Gift:    &a,
		})
	}
}

func (s *Session) publish(ctx context.Context, a Activity) {
	a.ID = uuid.NewString()
	if err := s.pub.Publish(ctx, a); err != nil {
		s.log.Warn().Err(err).Str("type", a.Type).Msg("publish activity failed")
	}
}

// scheduleReconcile (re)arms the debounced background reload.
func (s *Session) scheduleReconcile() {
	if s.opts.ReconcileDebounce <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.opts.ReconcileDebounce, s.reconcile)
}

func (s *Session) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ReloadTimeout)
	defer cancel()
	if err := s.Reload(ctx); err != nil {
		s.log.Warn().Err(err).Msg("background reconciliation failed")
	}
}

// view returns the effective snapshot.
func (s *Session) view() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Snapshot{}, ErrSessionNotLoaded
	}
	s.lastUsed = s.now()
	return s.overlay.Effective(s.server), nil
}

// Overview aggregates the effective state.
func (s *Session) Overview() (Overview, error) {
	snap, err := s.view()
	if err != nil {
		return Overview{}, err
	}
	s.mu.Lock()
	pending, loadedAt := s.overlay.Len(), s.loadedAt
	s.mu.Unlock()
	return Overview{
		Event:          snap.Event,
		Stats:          Aggregate(snap),
		Revenue:        Reconcile(snap),
		Summary:        snap.Summary,
		FailedSources:  snap.FailedSources,
		PendingActions: pending,
		LoadedAt:       loadedAt,
	}, nil
}

// Revenue reconciles the effective state.
func (s *Session) Revenue() (RevenueLedger, error) {
	snap, err := s.view()
	if err != nil {
		return RevenueLedger{}, err
	}
	return Reconcile(snap), nil
}

// Event returns the loaded event descriptor.
func (s *Session) Event() (Event, error) {
	snap, err := s.view()
	if err != nil {
		return Event{}, err
	}
	return snap.Event, nil
}

// Search projects the effective state.
func (s *Session) Search(f Filter) ([]Row, error) {
	snap, err := s.view()
	if err != nil {
		return nil, err
	}
	return Project(snap, f), nil
}

// Export projects the effective state into export rows.
func (s *Session) Export(f Filter) ([]ExportRow, error) {
	rows, err := s.Search(f)
	if err != nil {
		return nil, err
	}
	return Export(rows), nil
}

// GiftRules returns the active rules, lowest threshold first.
func (s *Session) GiftRules() []GiftRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GiftRule(nil), s.rules...)
}

// GiftProgress reports the gift ladder of one list from what is already
// known, without contacting the upstream.
func (s *Session) GiftProgress(listID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return Progress{}, ErrSessionNotLoaded
	}
	s.lastUsed = s.now()
	snap := s.overlay.Effective(s.server)
	if _, ok := snap.Lists[listID]; !ok {
		return Progress{}, ErrUnknownGuestList
	}
	return ComputeProgress(listID, snap.CheckedInRoster(listID), s.rules, s.awards.Known(listID), nil), nil
}

// Roster refetches the roster of one list and returns its rows, owner
// included. A response overtaken by a reload or a confirmed action is
// dropped and the rows already held are returned.
func (s *Session) Roster(ctx context.Context, listID string) ([]Row, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrSessionNotLoaded
	}
	list, ok := s.server.Lists[listID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownGuestList
	}

	class := "roster:" + listID
	base := s.gens.Latest(ClassReload)
	gen := s.gens.Next(class)
	raw, err := s.up.Roster(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", listID, err)
	}
	records, drops := NormalizeRoster(list, raw)
	for _, d := range drops {
		s.log.Debug().Str("kind", string(d.Kind)).Str("id", d.ID).Str("reason", d.Reason).Msg("record dropped")
	}

	s.mu.Lock()
	if s.gens.Current(ClassReload, base) && s.gens.Current(class, gen) {
		s.replaceRoster(listID, records)
	} else {
		s.log.Debug().Str("guest_list_id", listID).Msg("stale roster discarded")
	}
	snap := s.overlay.Effective(s.server)
	s.mu.Unlock()

	rows := Project(snap, Filter{IncludeCancelled: true})
	out := rows[:0]
	for _, r := range rows {
		if r.GuestListID == listID {
			out = append(out, r)
		}
	}
	return out, nil
}

// replaceRoster swaps the roster of one list in a copy of the server
// snapshot. Callers hold s.mu.
func (s *Session) replaceRoster(listID string, records []GuestRecord) {
	old := s.server
	list, ok := old.Lists[listID]
	if !ok {
		return
	}
	stale := make(map[string]bool, len(list.Roster))
	for _, k := range list.Roster {
		stale[k] = true
	}

	next := old
	next.Records = make(map[string]GuestRecord, len(old.Records)+len(records))
	for k, r := range old.Records {
		if !stale[k] {
			next.Records[k] = r
		}
	}
	next.Order = make([]string, 0, len(old.Order)+len(records))
	for _, k := range old.Order {
		if !stale[k] {
			next.Order = append(next.Order, k)
		}
	}
	list.Roster = make([]string, 0, len(records))
	touched := make([]string, 0, len(stale)+len(records))
	for k := range stale {
		touched = append(touched, k)
	}
	for _, r := range records {
		k := r.Key()
		if _, dup := next.Records[k]; dup {
			continue
		}
		next.Records[k] = r
		next.Order = append(next.Order, k)
		list.Roster = append(list.Roster, k)
		touched = append(touched, k)
	}
	next.Lists = make(map[string]GuestList, len(old.Lists))
	for k, l := range old.Lists {
		next.Lists[k] = l
	}
	next.Lists[listID] = list
	s.server = next
	s.overlay.RebaseKeys(touched)
}

// LookupReservations searches reservations beyond the loaded event. fresh
// is false when a newer search superseded this one; the rows are then nil.
// A search superseded within LookupDebounce never reaches the upstream.
func (s *Session) LookupReservations(ctx context.Context, q ReservationQuery) (rows []Row, fresh bool, err error) {
	s.mu.Lock()
	if q.EstablishmentID == "" {
		q.EstablishmentID = s.server.Event.EstablishmentID
	}
	s.lastUsed = s.now()
	s.mu.Unlock()

	gen := s.gens.Next(ClassReservations)
	if d := s.opts.LookupDebounce; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, false, ctx.Err()
		case <-t.C:
		}
		if !s.gens.Current(ClassReservations, gen) {
			return nil, false, nil
		}
	}
	raw, err := s.up.SearchReservations(ctx, q)
	if err != nil {
		return nil, false, fmt.Errorf("search reservations: %w", err)
	}
	if !s.gens.Current(ClassReservations, gen) {
		return nil, false, nil
	}
	records, _ := NormalizeReservations(raw)
	snap := newSnapshot()
	for _, r := range records {
		snap.Records[r.Key()] = r
		snap.Order = append(snap.Order, r.Key())
	}
	return Project(snap, Filter{}), true, nil
}

// Close stops the background reconciliation. The session keeps serving
// reads.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
