package repository

import (
	"context"
	"strings"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

const defaultSearchLimit = 50

// SearchReservations finds table reservations of an establishment outside
// the loaded event, typically a walk-in who booked under another date.
// Text matches client name, phone or email.
func (s *Store) SearchReservations(ctx context.Context, q checkin.ReservationQuery) ([]model.RawTableReservation, error) {
	where := []string{}
	args := []any{}

	if q.EstablishmentID != "" {
		where = append(where, "establishment_id = ?")
		args = append(args, q.EstablishmentID)
	}
	if q.Date != "" {
		where = append(where, "reservation_date = ?")
		args = append(args, q.Date)
	}
	if t := strings.ToLower(strings.TrimSpace(q.Text)); t != "" {
		where = append(where, "(LOWER(client_name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?)")
		like := "%" + t + "%"
		args = append(args, like, like, like)
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = defaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+reservationColumns+`
		FROM table_reservations
		WHERE `+cond+`
		ORDER BY reservation_date, reservation_time, id
		LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}
