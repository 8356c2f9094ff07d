package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// GiftRules returns the rules that apply to an event: the establishment's
// rules not bound to any event plus those bound to this one. Inactive rules
// are returned too; the engine ignores them.
func (s *Store) GiftRules(ctx context.Context, establishmentID, eventID string) ([]model.RawGiftRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, required_checkins, active, establishment_id, event_id
		FROM gift_rules
		WHERE establishment_id = ? AND (event_id IS NULL OR event_id = ?)
		ORDER BY required_checkins, id`, establishmentID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RawGiftRule{}
	for rows.Next() {
		var (
			r                 model.RawGiftRule
			id, required, est int64
			active            bool
			ev                sql.NullInt64
		)
		if err := rows.Scan(&id, &r.Description, &required, &active, &est, &ev); err != nil {
			return nil, err
		}
		r.ID, r.RequiredCheckins, r.Active, r.EstablishmentID = id, required, active, est
		if ev.Valid {
			r.EventID = ev.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GiftAwards returns the gifts already granted to a guest list.
func (s *Store) GiftAwards(ctx context.Context, listID string) ([]model.RawGiftAward, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.rule_id, r.description, r.required_checkins, a.awarded_at
		FROM gift_awards a
		JOIN gift_rules r ON r.id = a.rule_id
		WHERE a.guest_list_id = ?
		ORDER BY r.required_checkins, a.id`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RawGiftAward{}
	for rows.Next() {
		var (
			a                  model.RawGiftAward
			id, rule, required int64
			at                 sql.NullTime
		)
		if err := rows.Scan(&id, &rule, &a.Description, &required, &at); err != nil {
			return nil, err
		}
		a.ID, a.RuleID, a.RequiredCheckins = id, rule, required
		a.AwardedAt = stamp(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// grantAwardsTx records every active rule the list has reached and not yet
// been awarded. Gift thresholds are cumulative, so guests who already left
// still count.
func (s *Store) grantAwardsTx(ctx context.Context, tx *sql.Tx, listID int64, at time.Time) error {
	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM guest_list_guests WHERE guest_list_id=? AND checked_in=1",
		listID).Scan(&count); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT r.id
		FROM gift_rules r
		JOIN guest_lists l ON l.id = ?
		JOIN events e ON e.id = l.event_id
		WHERE r.active = 1
		  AND r.establishment_id = e.establishment_id
		  AND (r.event_id IS NULL OR r.event_id = e.id)
		  AND r.required_checkins <= ?
		  AND NOT EXISTS (
		      SELECT 1 FROM gift_awards a WHERE a.guest_list_id = l.id AND a.rule_id = r.id)`,
		listID, count)
	if err != nil {
		return err
	}
	var due []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		due = append(due, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, rule := range due {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO gift_awards (guest_list_id, rule_id, awarded_at) VALUES (?,?,?)",
			listID, rule, at); err != nil {
			return err
		}
	}
	return nil
}
