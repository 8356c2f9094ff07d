package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// presence is the state of the addressed row as read inside the action's
// transaction.
type presence struct {
	in, out   bool
	concluded bool
	status    string
	listID    int64
}

// CheckIn marks the addressed person (or guest list owner) as inside.
// Every update is conditional on the state read in the same transaction,
// so two devices racing on one guest produce one check-in and one 409.
func (s *Store) CheckIn(ctx context.Context, req checkin.ActionRequest) (model.RawActionResult, error) {
	at := s.now().UTC()
	res := model.RawActionResult{CheckinTime: at.Format(time.RFC3339)}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if req.Owner {
			res.ID = req.ListID
			return s.ownerCheckInTx(ctx, tx, req, at)
		}
		res.ID = req.ID
		p, err := s.presenceTx(ctx, tx, req)
		if err != nil {
			return err
		}
		switch {
		case p.concluded:
			return rejected(ErrConflict, "guest list already concluded")
		case p.out:
			return rejected(ErrConflict, "guest already checked out")
		case p.in:
			return rejected(ErrConflict, "guest already checked in")
		}

		kind, amt := feeColumns(req.Fee)
		switch req.Kind {
		case checkin.TableReservation:
			return execOne(ctx, tx, `UPDATE table_reservations SET checked_in=1, checkin_time=?
				WHERE id=? AND checked_in=0`, at, req.ID)
		case checkin.BoothGuest:
			return execOne(ctx, tx, `UPDATE booth_reservations SET checked_in=1, checkin_time=?
				WHERE id=? AND checked_in=0`, at, req.ID)
		case checkin.RestaurantGuest:
			if err := execOne(ctx, tx, `UPDATE guest_list_guests
				SET checked_in=1, checkin_time=?, entry_fee_kind=?, entry_fee_amount=?
				WHERE id=? AND checked_in=0`, at, kind, amt, req.ID); err != nil {
				return err
			}
			return s.grantAwardsTx(ctx, tx, p.listID, at)
		case checkin.PromoterGuest:
			return execOne(ctx, tx, `UPDATE promoter_guests
				SET status='check-in', checkin_time=?, entry_fee_kind=?, entry_fee_amount=?
				WHERE id=? AND status=?`, at, kind, amt, req.ID, p.status)
		}
		return rejected(ErrNotFound, "unknown record kind")
	})
	if err != nil {
		return model.RawActionResult{}, err
	}
	res.Message = "checked in"
	return res, nil
}

// CheckOut marks the addressed person (or guest list owner) as gone.
func (s *Store) CheckOut(ctx context.Context, req checkin.ActionRequest) (model.RawActionResult, error) {
	at := s.now().UTC()
	res := model.RawActionResult{CheckoutTime: at.Format(time.RFC3339)}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if req.Owner {
			res.ID = req.ListID
			return s.ownerCheckOutTx(ctx, tx, req, at)
		}
		res.ID = req.ID
		p, err := s.presenceTx(ctx, tx, req)
		if err != nil {
			return err
		}
		switch {
		case p.concluded:
			return rejected(ErrConflict, "guest list already concluded")
		case !p.in:
			return rejected(ErrConflict, "guest has not checked in")
		case p.out:
			return rejected(ErrConflict, "guest already checked out")
		}

		switch req.Kind {
		case checkin.TableReservation:
			return execOne(ctx, tx, `UPDATE table_reservations SET checked_out=1, checkout_time=?
				WHERE id=? AND checked_in=1 AND checked_out=0`, at, req.ID)
		case checkin.BoothGuest:
			return execOne(ctx, tx, `UPDATE booth_reservations SET checked_out=1, checkout_time=?
				WHERE id=? AND checked_in=1 AND checked_out=0`, at, req.ID)
		case checkin.RestaurantGuest:
			return execOne(ctx, tx, `UPDATE guest_list_guests SET checked_out=1, checkout_time=?
				WHERE id=? AND checked_in=1 AND checked_out=0`, at, req.ID)
		case checkin.PromoterGuest:
			return execOne(ctx, tx, `UPDATE promoter_guests SET status='check-out', checkout_time=?
				WHERE id=? AND status=?`, at, req.ID, p.status)
		}
		return rejected(ErrNotFound, "unknown record kind")
	})
	if err != nil {
		return model.RawActionResult{}, err
	}
	res.Message = "checked out"
	return res, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// execOne runs a conditional update that must touch exactly one row. Zero
// rows means another writer changed the record after it was read.
func execOne(ctx context.Context, tx *sql.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return rejected(ErrConflict, "record changed, reload and try again")
	}
	return nil
}

func feeColumns(f *checkin.FeeInput) (sql.NullString, decimal.NullDecimal) {
	if f == nil {
		return sql.NullString{}, decimal.NullDecimal{}
	}
	kind := sql.NullString{String: string(f.Kind), Valid: f.Kind != ""}
	if f.Amount == nil {
		return kind, decimal.NullDecimal{}
	}
	return kind, decimal.NullDecimal{Decimal: *f.Amount, Valid: true}
}

// presenceTx reads the check-in state of the addressed record, scoped to
// the event so an id from another event is reported as not found.
func (s *Store) presenceTx(ctx context.Context, tx *sql.Tx, req checkin.ActionRequest) (presence, error) {
	var (
		p   presence
		err error
	)
	switch req.Kind {
	case checkin.TableReservation:
		err = tx.QueryRowContext(ctx, `
			SELECT r.checked_in, r.checked_out, r.status
			FROM table_reservations r
			JOIN events e ON e.id = ?
			WHERE r.id = ?
			  AND (r.event_id = e.id
			   OR (r.event_id IS NULL AND r.establishment_id = e.establishment_id AND r.reservation_date = e.event_date))`,
			req.EventID, req.ID).Scan(&p.in, &p.out, &p.status)
		if err == nil && isCancelled(p.status) {
			return p, rejected(ErrConflict, "reservation is cancelled")
		}
	case checkin.BoothGuest:
		err = tx.QueryRowContext(ctx, `
			SELECT checked_in, checked_out, status FROM booth_reservations
			WHERE id = ? AND event_id = ?`, req.ID, req.EventID).Scan(&p.in, &p.out, &p.status)
		if err == nil && isCancelled(p.status) {
			return p, rejected(ErrConflict, "booth booking is cancelled")
		}
	case checkin.RestaurantGuest:
		err = tx.QueryRowContext(ctx, `
			SELECT g.checked_in, g.checked_out, l.owner_checked_out, l.id
			FROM guest_list_guests g
			JOIN guest_lists l ON l.id = g.guest_list_id
			WHERE g.id = ? AND l.event_id = ?`, req.ID, req.EventID).Scan(&p.in, &p.out, &p.concluded, &p.listID)
	case checkin.PromoterGuest:
		err = tx.QueryRowContext(ctx, `
			SELECT status FROM promoter_guests
			WHERE id = ? AND event_id = ?`, req.ID, req.EventID).Scan(&p.status)
		switch strings.ToLower(p.status) {
		case "check-in", "checked-in":
			p.in = true
		case "check-out", "checkout":
			p.in, p.out = true, true
		case "cancelado", "cancelled":
			if err == nil {
				return p, rejected(ErrConflict, "promoter guest is cancelled")
			}
		}
	default:
		return p, rejected(ErrNotFound, "unknown record kind")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return p, rejected(ErrNotFound, "guest not found")
	}
	if err != nil {
		return p, fmt.Errorf("read %s %s: %w", req.Kind, req.ID, err)
	}
	return p, nil
}

func isCancelled(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "cancelled", "canceled", "cancelada", "no-show":
		return true
	}
	return false
}

func (s *Store) ownerTx(ctx context.Context, tx *sql.Tx, req checkin.ActionRequest) (presence, error) {
	var p presence
	err := tx.QueryRowContext(ctx, `
		SELECT owner_checked_in, owner_checked_out FROM guest_lists
		WHERE id = ? AND event_id = ?`, req.ListID, req.EventID).Scan(&p.in, &p.out)
	if errors.Is(err, sql.ErrNoRows) {
		return p, rejected(ErrNotFound, "guest list not found")
	}
	return p, err
}

func (s *Store) ownerCheckInTx(ctx context.Context, tx *sql.Tx, req checkin.ActionRequest, at time.Time) error {
	p, err := s.ownerTx(ctx, tx, req)
	if err != nil {
		return err
	}
	if p.out {
		return rejected(ErrConflict, "guest list already concluded")
	}
	if p.in {
		return rejected(ErrConflict, "owner already checked in")
	}
	return execOne(ctx, tx, `UPDATE guest_lists SET owner_checked_in=1, owner_checkin_time=?
		WHERE id=? AND owner_checked_in=0`, at, req.ListID)
}

// ownerCheckOutTx concludes the list. Roster guests keep their presence
// columns; the list is read-only from here on.
func (s *Store) ownerCheckOutTx(ctx context.Context, tx *sql.Tx, req checkin.ActionRequest, at time.Time) error {
	p, err := s.ownerTx(ctx, tx, req)
	if err != nil {
		return err
	}
	if !p.in {
		return rejected(ErrConflict, "owner has not checked in")
	}
	if p.out {
		return rejected(ErrConflict, "guest list already concluded")
	}
	return execOne(ctx, tx, `UPDATE guest_lists SET owner_checked_out=1, owner_checkout_time=?
		WHERE id=? AND owner_checked_in=1 AND owner_checked_out=0`, at, req.ListID)
}
