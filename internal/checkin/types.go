// Package checkin reconciles the four guest-tracking sources of a venue event
// (table reservations, restaurant guest lists, promoter lists and VIP booths)
// into one working view: who is expected, who is inside, which gifts a guest
// list has unlocked and how much entry revenue was taken at the door.
//
// The package is organised as pure derivation functions over a Snapshot
// (Normalize, Aggregate, Reconcile, Progress, Project) plus a Session that
// owns the mutable state of one event: the authoritative server snapshot, the
// optimistic overlay and the in-flight guard.
package checkin

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind identifies which upstream collection a record came from.
type SourceKind string

const (
	TableReservation SourceKind = "reservation"
	RestaurantGuest  SourceKind = "list_guest"
	PromoterGuest    SourceKind = "promoter_guest"
	BoothGuest       SourceKind = "booth"
)

// Kinds lists every source kind in display order.
var Kinds = []SourceKind{TableReservation, RestaurantGuest, PromoterGuest, BoothGuest}

// Valid reports whether k is one of the four known kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case TableReservation, RestaurantGuest, PromoterGuest, BoothGuest:
		return true
	}
	return false
}

// RequiresFee reports whether checking in a record of this kind needs a fee
// classification.
func (k SourceKind) RequiresFee() bool {
	return k == RestaurantGuest || k == PromoterGuest
}

// Status is the position of a person in the check-in state machine.
type Status string

const (
	Pending    Status = "pending"
	CheckedIn  Status = "checked_in"
	CheckedOut Status = "checked_out"
)

// FeeKind classifies the entry fee applied at check-in.
type FeeKind string

const (
	Complimentary     FeeKind = "complimentary"
	DryEntry          FeeKind = "dry_entry"
	ConsumptionCredit FeeKind = "consumption_credit"
)

// FeeKinds lists the fee kinds in ledger order.
var FeeKinds = []FeeKind{Complimentary, DryEntry, ConsumptionCredit}

// Event is the descriptor of the event being worked. It does not change
// during a session.
type Event struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EstablishmentID string `json:"establishment_id"`
	Establishment   string `json:"establishment_name"`
}

// GuestRecord is the canonical form of one person (or one booth booking)
// regardless of the source it came from.
//
// CheckedOut implies CheckedIn. CheckoutAt is set only when CheckedOut.
type GuestRecord struct {
	Kind         SourceKind       `json:"kind"`
	ID           string           `json:"id"`
	DisplayName  string           `json:"name"`
	Phone        string           `json:"phone,omitempty"`
	Email        string           `json:"email,omitempty"`
	OwnerName    string           `json:"owner_name,omitempty"`
	OriginLabel  string           `json:"origin,omitempty"`
	CheckedIn    bool             `json:"checked_in"`
	CheckedOut   bool             `json:"checked_out"`
	CheckinAt    *time.Time       `json:"checkin_at,omitempty"`
	CheckoutAt   *time.Time       `json:"checkout_at,omitempty"`
	FeeKind      FeeKind          `json:"entry_fee_kind,omitempty"`
	FeeAmount    *decimal.Decimal `json:"entry_fee_amount,omitempty"`
	PromoterID   string           `json:"promoter_id,omitempty"`
	GuestListID  string           `json:"guest_list_id,omitempty"`
	Date         string           `json:"date,omitempty"`
	Time         string           `json:"time,omitempty"`
	Table        string           `json:"table,omitempty"`
	Area         string           `json:"area,omitempty"`
	People       int              `json:"people"`
	Notes        string           `json:"notes,omitempty"`
	SourceStatus string           `json:"source_status,omitempty"`
}

// Key returns the identity of the record across all sources. Ids from
// different collections may collide, so the kind is part of the key.
func (r GuestRecord) Key() string { return recordKey(r.Kind, r.ID) }

// Status derives the state machine position from the two flags.
func (r GuestRecord) Status() Status {
	switch {
	case r.CheckedOut:
		return CheckedOut
	case r.CheckedIn:
		return CheckedIn
	}
	return Pending
}

func recordKey(kind SourceKind, id string) string { return string(kind) + ":" + id }

// Owner is the check-in state of a guest list owner, tracked independently
// from the roster.
type Owner struct {
	Name       string     `json:"name"`
	Phone      string     `json:"phone,omitempty"`
	CheckedIn  bool       `json:"checked_in"`
	CheckedOut bool       `json:"checked_out"`
	CheckinAt  *time.Time `json:"checkin_at,omitempty"`
	CheckoutAt *time.Time `json:"checkout_at,omitempty"`
}

// Status derives the owner's state machine position.
func (o Owner) Status() Status {
	switch {
	case o.CheckedOut:
		return CheckedOut
	case o.CheckedIn:
		return CheckedIn
	}
	return Pending
}

// GuestList is a group reservation. Roster holds the keys of its
// RestaurantGuest records in the snapshot, not the owner.
type GuestList struct {
	ID            string     `json:"id"`
	ReservationID string     `json:"reservation_id,omitempty"`
	Owner         Owner      `json:"owner"`
	Date          string     `json:"date,omitempty"`
	Time          string     `json:"time,omitempty"`
	Table         string     `json:"table,omitempty"`
	Area          string     `json:"area,omitempty"`
	OriginLabel   string     `json:"origin,omitempty"`
	Valid         bool       `json:"valid"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	ExpectedTotal int        `json:"expected_total"`
	Roster        []string   `json:"-"`
}

// Concluded reports whether the list's occupancy has ended: once the owner
// leaves, nobody on the list can be checked in or out any more.
func (l GuestList) Concluded() bool { return l.Owner.CheckedOut }

// Promoter is a promoter known to the event.
type Promoter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GiftRule unlocks a reward once a guest list reaches RequiredCheckins.
type GiftRule struct {
	ID               string `json:"id"`
	Description      string `json:"description"`
	RequiredCheckins int    `json:"required_checkins"`
	Active           bool   `json:"active"`
}

// GiftAward is a reward granted to one guest list.
type GiftAward struct {
	ID               string     `json:"id"`
	RuleID           string     `json:"rule_id"`
	Description      string     `json:"description"`
	RequiredCheckins int        `json:"required_checkins"`
	AwardedAt        *time.Time `json:"awarded_at,omitempty"`
}

// identity is what award comparison keys on: the rule when the server
// reports one, otherwise the award itself.
func (a GiftAward) identity() string {
	if a.RuleID != "" {
		return "rule:" + a.RuleID
	}
	return "award:" + a.ID
}

// Snapshot is a complete, self-consistent picture of one event. Records is
// keyed by GuestRecord.Key and Order preserves the load order so derived
// views are deterministic.
type Snapshot struct {
	Event         Event                  `json:"event"`
	Records       map[string]GuestRecord `json:"-"`
	Order         []string               `json:"-"`
	Lists         map[string]GuestList   `json:"-"`
	ListOrder     []string               `json:"-"`
	Promoters     map[string]Promoter    `json:"-"`
	Summary       map[string]any         `json:"summary,omitempty"`
	FailedSources []SourceKind           `json:"failed_sources,omitempty"`
	Dropped       int                    `json:"dropped"`
}

func newSnapshot() Snapshot {
	return Snapshot{
		Records:   map[string]GuestRecord{},
		Lists:     map[string]GuestList{},
		Promoters: map[string]Promoter{},
	}
}

// RecordList returns the records in load order.
func (s Snapshot) RecordList() []GuestRecord {
	out := make([]GuestRecord, 0, len(s.Order))
	for _, k := range s.Order {
		if r, ok := s.Records[k]; ok {
			out = append(out, r)
		}
	}
	return out
}

// GuestLists returns the lists in load order.
func (s Snapshot) GuestLists() []GuestList {
	out := make([]GuestList, 0, len(s.ListOrder))
	for _, id := range s.ListOrder {
		if l, ok := s.Lists[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// ListConcluded reports whether r belongs to a guest list whose owner has
// checked out.
func (s Snapshot) ListConcluded(r GuestRecord) bool {
	if r.GuestListID == "" {
		return false
	}
	l, ok := s.Lists[r.GuestListID]
	return ok && l.Concluded()
}

// CheckedInRoster counts the roster members of a list that are inside or
// have left. Gift thresholds are cumulative, so check-outs still count.
func (s Snapshot) CheckedInRoster(listID string) int {
	l, ok := s.Lists[listID]
	if !ok {
		return 0
	}
	n := 0
	for _, k := range l.Roster {
		if r, ok := s.Records[k]; ok && r.CheckedIn {
			n++
		}
	}
	return n
}
