package checkin

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrFeeRequired          = errors.New("checkin: fee classification required")
	ErrInvalidFee           = errors.New("checkin: invalid fee classification")
	ErrConfirmationRequired = errors.New("checkin: check-out must be confirmed")
	ErrUnknownRecord        = errors.New("checkin: unknown guest record")
	ErrUnknownGuestList     = errors.New("checkin: unknown guest list")
	ErrSessionNotLoaded     = errors.New("checkin: session not loaded")
)

// Outcome tells a caller what an action did. Only Applied changes state;
// the other outcomes are deliberate no-ops, not failures.
type Outcome string

const (
	Applied Outcome = "applied"
	NoOp    Outcome = "noop"
	Locked  Outcome = "locked"
	Busy    Outcome = "busy"
)

// FeeInput is the classification staff choose at the door. Dry entry and
// consumption credit carry an amount; complimentary entries may omit it.
type FeeInput struct {
	Kind   FeeKind          `json:"kind"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

func (f *FeeInput) validate() error {
	switch f.Kind {
	case Complimentary:
		if f.Amount != nil && f.Amount.IsNegative() {
			return ErrInvalidFee
		}
	case DryEntry, ConsumptionCredit:
		if f.Amount == nil || f.Amount.IsNegative() {
			return ErrInvalidFee
		}
	default:
		return ErrInvalidFee
	}
	return nil
}

// CheckIn moves the record at key from Pending to CheckedIn. Roster and
// promoter guests need a fee; reservations and booths ignore it. A record
// already inside, or on a concluded list, is left untouched.
func CheckIn(snap Snapshot, key string, fee *FeeInput, at time.Time) (GuestRecord, Outcome, error) {
	r, ok := snap.Records[key]
	if !ok {
		return GuestRecord{}, NoOp, ErrUnknownRecord
	}
	if snap.ListConcluded(r) {
		return r, Locked, nil
	}
	if r.Status() != Pending {
		return r, NoOp, nil
	}
	if r.Kind.RequiresFee() {
		if fee == nil {
			return r, NoOp, ErrFeeRequired
		}
		if err := fee.validate(); err != nil {
			return r, NoOp, err
		}
	}

	next := r
	next.CheckedIn = true
	t := at.UTC()
	next.CheckinAt = &t
	if r.Kind.RequiresFee() {
		next.FeeKind = fee.Kind
		next.FeeAmount = nil
		if fee.Amount != nil {
			amt := *fee.Amount
			next.FeeAmount = &amt
		}
	}
	return next, Applied, nil
}

// CheckOut moves the record at key from CheckedIn to CheckedOut. Staff must
// confirm the action; from Pending it is a no-op.
func CheckOut(snap Snapshot, key string, confirmed bool, at time.Time) (GuestRecord, Outcome, error) {
	r, ok := snap.Records[key]
	if !ok {
		return GuestRecord{}, NoOp, ErrUnknownRecord
	}
	if snap.ListConcluded(r) {
		return r, Locked, nil
	}
	if r.Status() != CheckedIn {
		return r, NoOp, nil
	}
	if !confirmed {
		return r, NoOp, ErrConfirmationRequired
	}
	next := r
	next.CheckedOut = true
	t := at.UTC()
	next.CheckoutAt = &t
	return next, Applied, nil
}

// CheckInOwner moves a guest list owner from Pending to CheckedIn. Owners
// hold the reservation and are not charged at the door.
func CheckInOwner(snap Snapshot, listID string, at time.Time) (Owner, Outcome, error) {
	l, ok := snap.Lists[listID]
	if !ok {
		return Owner{}, NoOp, ErrUnknownGuestList
	}
	if l.Concluded() {
		return l.Owner, Locked, nil
	}
	if l.Owner.Status() != Pending {
		return l.Owner, NoOp, nil
	}
	o := l.Owner
	o.CheckedIn = true
	t := at.UTC()
	o.CheckinAt = &t
	return o, Applied, nil
}

// CheckOutOwner concludes the list. After this no roster member can be
// checked in or out, whatever their own state says.
func CheckOutOwner(snap Snapshot, listID string, confirmed bool, at time.Time) (Owner, Outcome, error) {
	l, ok := snap.Lists[listID]
	if !ok {
		return Owner{}, NoOp, ErrUnknownGuestList
	}
	if l.Concluded() {
		return l.Owner, Locked, nil
	}
	if l.Owner.Status() != CheckedIn {
		return l.Owner, NoOp, nil
	}
	if !confirmed {
		return l.Owner, NoOp, ErrConfirmationRequired
	}
	o := l.Owner
	o.CheckedOut = true
	t := at.UTC()
	o.CheckoutAt = &t
	return o, Applied, nil
}
