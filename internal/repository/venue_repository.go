package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// Store is the venue database seen as the upstream of the check-in engine.
// It reads the four guest-tracking collections of an event and writes the
// presence columns when staff check people in or out.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ checkin.Upstream = (*Store)(nil)

func NewStore(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

// rejected builds the error returned for a refused action. msg is shown to
// staff as is.
func rejected(cause error, msg string) error {
	status := http.StatusConflict
	if errors.Is(cause, ErrNotFound) {
		status = http.StatusNotFound
	}
	return &checkin.RemoteError{Status: status, Message: msg, Err: cause}
}

// stamp renders a nullable DATETIME the way the wire shapes carry it.
func stamp(t sql.NullTime) string {
	if !t.Valid || t.Time.IsZero() {
		return ""
	}
	return t.Time.UTC().Format(time.RFC3339)
}

func amount(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

// LoadEvent reads everything the door needs for one event. Only a missing
// event fails the call; a collection that cannot be read is reported in
// FailedSources so the rest of the event stays usable.
func (s *Store) LoadEvent(ctx context.Context, eventID string) (model.RawLoadResult, error) {
	var (
		out     model.RawLoadResult
		id      int64
		estID   int64
		estName sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.name, e.event_date, e.start_time, e.establishment_id, es.name
		FROM events e
		LEFT JOIN establishments es ON es.id = e.establishment_id
		WHERE e.id = ? LIMIT 1`, eventID).
		Scan(&id, &out.Event.Name, &out.Event.Date, &out.Event.StartTime, &estID, &estName)
	if errors.Is(err, sql.ErrNoRows) {
		return out, rejected(ErrNotFound, "event not found")
	}
	if err != nil {
		return out, fmt.Errorf("load event %s: %w", eventID, err)
	}
	out.Event.ID = id
	out.Event.EstablishmentID = estID
	out.Event.Establishment = estName.String

	if out.TableReservations, err = s.eventReservations(ctx, id, estID, out.Event.Date); err != nil {
		out.FailedSources = append(out.FailedSources, "reservations")
	}
	if out.GuestLists, err = s.eventGuestLists(ctx, id); err != nil {
		out.FailedSources = append(out.FailedSources, "guest_lists")
	}
	if out.Promoters, err = s.eventPromoters(ctx, id); err != nil {
		out.FailedSources = append(out.FailedSources, "promoters")
	}
	if out.Booths, err = s.eventBooths(ctx, id); err != nil {
		out.FailedSources = append(out.FailedSources, "booths")
	}

	guests := 0
	for _, l := range out.GuestLists {
		guests += len(l.Guests)
	}
	promoted := 0
	for _, p := range out.Promoters {
		promoted += len(p.Guests)
	}
	out.Summary = map[string]any{
		"reservations":      len(out.TableReservations),
		"guest_lists":       len(out.GuestLists),
		"guest_list_guests": guests,
		"promoter_guests":   promoted,
		"booths":            len(out.Booths),
	}
	return out, nil
}

const reservationColumns = `id, client_name, phone, email, reservation_date, reservation_time,
	table_number, area_name, number_of_people, status, origin, notes,
	checked_in, checkin_time, checked_out, checkout_time`

func scanReservations(rows *sql.Rows) ([]model.RawTableReservation, error) {
	defer rows.Close()
	out := []model.RawTableReservation{}
	for rows.Next() {
		var (
			r         model.RawTableReservation
			id        int64
			people    int64
			in, left  bool
			notes     sql.NullString
			cin, cout sql.NullTime
		)
		if err := rows.Scan(&id, &r.ClientName, &r.Phone, &r.Email, &r.ReservationDate, &r.ReservationTime,
			&r.TableNumber, &r.AreaName, &people, &r.Status, &r.Origin, &notes,
			&in, &cin, &left, &cout); err != nil {
			return nil, err
		}
		r.ID, r.NumberOfPeople = id, people
		r.Notes = notes.String
		r.CheckedIn, r.CheckinTime = in, stamp(cin)
		r.CheckedOut, r.CheckoutTime = left, stamp(cout)
		out = append(out, r)
	}
	return out, rows.Err()
}

// eventReservations includes the establishment's reservations for the
// event date that were never attached to an event.
func (s *Store) eventReservations(ctx context.Context, eventID, estID int64, date string) ([]model.RawTableReservation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reservationColumns+`
		FROM table_reservations
		WHERE event_id = ?
		   OR (event_id IS NULL AND establishment_id = ? AND reservation_date = ?)
		ORDER BY reservation_time, id`, eventID, estID, date)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

func (s *Store) eventGuestLists(ctx context.Context, eventID int64) ([]model.RawGuestList, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reservation_id, owner_name, owner_phone, reservation_date, reservation_time,
		       table_number, area_name, origin, is_valid, expires_at, total_guests,
		       owner_checked_in, owner_checkin_time, owner_checked_out, owner_checkout_time
		FROM guest_lists
		WHERE event_id = ?
		ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := []model.RawGuestList{}
	index := map[int64]int{}
	for rows.Next() {
		var (
			l                  model.RawGuestList
			id, total          int64
			resID              sql.NullInt64
			valid, in, left    bool
			expires, cin, cout sql.NullTime
		)
		if err := rows.Scan(&id, &resID, &l.OwnerName, &l.OwnerPhone, &l.ReservationDate, &l.ReservationTime,
			&l.TableNumber, &l.AreaName, &l.Origin, &valid, &expires, &total,
			&in, &cin, &left, &cout); err != nil {
			return nil, err
		}
		l.ID, l.TotalGuests, l.IsValid = id, total, valid
		if resID.Valid {
			l.ReservationID = resID.Int64
		}
		l.ExpiresAt = stamp(expires)
		l.OwnerCheckedIn, l.OwnerCheckinTime = in, stamp(cin)
		l.OwnerCheckedOut, l.OwnerCheckoutTime = left, stamp(cout)
		index[id] = len(lists)
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return lists, nil
	}

	grows, err := s.db.QueryContext(ctx, `
		SELECT g.guest_list_id, `+guestColumns+`
		FROM guest_list_guests g
		JOIN guest_lists l ON l.id = g.guest_list_id
		WHERE l.event_id = ?
		ORDER BY g.guest_list_id, g.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer grows.Close()
	for grows.Next() {
		var listID int64
		g, err := scanGuest(grows, &listID)
		if err != nil {
			return nil, err
		}
		if i, ok := index[listID]; ok {
			lists[i].Guests = append(lists[i].Guests, g)
		}
	}
	return lists, grows.Err()
}

const guestColumns = `g.id, g.name, g.phone, g.email, g.checked_in, g.checkin_time,
	g.checked_out, g.checkout_time, g.entry_fee_kind, g.entry_fee_amount`

type scanner interface{ Scan(dest ...any) error }

// scanGuest reads one roster row. lead receives the columns selected
// before guestColumns.
func scanGuest(sc scanner, lead ...any) (model.RawListGuest, error) {
	var (
		g         model.RawListGuest
		id        int64
		in, left  bool
		cin, cout sql.NullTime
		kind      sql.NullString
		amt       decimal.NullDecimal
	)
	dest := append(lead, &id, &g.Name, &g.Phone, &g.Email, &in, &cin, &left, &cout, &kind, &amt)
	if err := sc.Scan(dest...); err != nil {
		return g, err
	}
	g.ID = id
	g.CheckedIn, g.CheckinTime = in, stamp(cin)
	g.CheckedOut, g.CheckoutTime = left, stamp(cout)
	g.EntryFeeKind = kind.String
	g.EntryFeeAmount = amount(amt)
	return g, nil
}

func (s *Store) eventPromoters(ctx context.Context, eventID int64) ([]model.RawPromoter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, pg.id, pg.name, pg.phone, pg.status, pg.list_name,
		       pg.checkin_time, pg.checkout_time, pg.entry_fee_kind, pg.entry_fee_amount, pg.notes
		FROM promoter_guests pg
		JOIN promoters p ON p.id = pg.promoter_id
		WHERE pg.event_id = ?
		ORDER BY p.id, pg.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RawPromoter{}
	for rows.Next() {
		var (
			pid, gid  int64
			pname     string
			g         model.RawPromoterGuest
			cin, cout sql.NullTime
			kind      sql.NullString
			amt       decimal.NullDecimal
			notes     sql.NullString
		)
		if err := rows.Scan(&pid, &pname, &gid, &g.Name, &g.Phone, &g.Status, &g.ListName,
			&cin, &cout, &kind, &amt, &notes); err != nil {
			return nil, err
		}
		g.ID, g.PromoterID = gid, pid
		g.CheckinTime, g.CheckoutTime = stamp(cin), stamp(cout)
		g.EntryFeeKind, g.EntryFeeAmount = kind.String, amount(amt)
		g.Notes = notes.String
		if n := len(out); n == 0 || out[n-1].ID != pid {
			out = append(out, model.RawPromoter{ID: pid, Name: pname})
		}
		last := &out[len(out)-1]
		last.Guests = append(last.Guests, g)
	}
	return out, rows.Err()
}

func (s *Store) eventBooths(ctx context.Context, eventID int64) ([]model.RawBooth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_name, phone, reservation_date, reservation_time, booth_name, area_name,
		       number_of_people, status, notes, checked_in, checkin_time, checked_out, checkout_time
		FROM booth_reservations
		WHERE event_id = ?
		ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RawBooth{}
	for rows.Next() {
		var (
			b         model.RawBooth
			id, n     int64
			in, left  bool
			notes     sql.NullString
			cin, cout sql.NullTime
		)
		if err := rows.Scan(&id, &b.ClientName, &b.Phone, &b.ReservationDate, &b.ReservationTime, &b.BoothName,
			&b.AreaName, &n, &b.Status, &notes, &in, &cin, &left, &cout); err != nil {
			return nil, err
		}
		b.ID, b.NumberOfPeople = id, n
		b.Notes = notes.String
		b.CheckedIn, b.CheckinTime = in, stamp(cin)
		b.CheckedOut, b.CheckoutTime = left, stamp(cout)
		out = append(out, b)
	}
	return out, rows.Err()
}

// Roster re-reads the guests of one list.
func (s *Store) Roster(ctx context.Context, listID string) ([]model.RawListGuest, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM guest_lists WHERE id=? LIMIT 1", listID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rejected(ErrNotFound, "guest list not found")
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+guestColumns+`
		FROM guest_list_guests g
		WHERE g.guest_list_id = ?
		ORDER BY g.id`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RawListGuest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
