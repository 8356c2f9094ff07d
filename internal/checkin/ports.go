package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// ActionRequest is a check-in or check-out sent to the upstream. Owner is
// set for guest list owner actions, in which case ListID identifies the
// list and Kind/ID are empty.
type ActionRequest struct {
	EventID string
	Kind    SourceKind
	ID      string
	ListID  string
	Owner   bool
	Fee     *FeeInput
	StaffID string
}

// ReservationQuery searches reservations outside the loaded event, e.g. a
// walk-in who booked for another date.
type ReservationQuery struct {
	EstablishmentID string
	Date            string
	Text            string
	Limit           int
}

// Upstream is the venue backend that owns the authoritative records.
// LoadEvent may report partially failed sources through
// RawLoadResult.FailedSources instead of failing the whole call.
type Upstream interface {
	LoadEvent(ctx context.Context, eventID string) (model.RawLoadResult, error)
	CheckIn(ctx context.Context, req ActionRequest) (model.RawActionResult, error)
	CheckOut(ctx context.Context, req ActionRequest) (model.RawActionResult, error)
	GiftRules(ctx context.Context, establishmentID, eventID string) ([]model.RawGiftRule, error)
	GiftAwards(ctx context.Context, listID string) ([]model.RawGiftAward, error)
	Roster(ctx context.Context, listID string) ([]model.RawListGuest, error)
	SearchReservations(ctx context.Context, q ReservationQuery) ([]model.RawTableReservation, error)
}

// RemoteError carries the human-readable message of a rejected upstream
// call so it can be shown to staff as is. Err, when set, is the cause on
// the upstream side.
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream rejected request (status %d)", e.Status)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Activity types.
const (
	ActivityCheckIn     = "checkin"
	ActivityCheckOut    = "checkout"
	ActivityGiftAwarded = "gift_awarded"
)

// Activity is a mutation event emitted after the upstream confirmed an
// action, or after a gift award was first seen.
type Activity struct {
	ID       string
	Type     string
	EventID  string
	Kind     string
	RecordID string
	ListID   string
	Name     string
	FeeKind  FeeKind
	Amount   string
	At       time.Time
	StaffID  string
	Gift     *GiftAward
}

// Publisher delivers activities to whoever listens (activity log,
// dashboards on other devices). Publishing is best effort.
type Publisher interface {
	Publish(ctx context.Context, a Activity) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Activity) error { return nil }
