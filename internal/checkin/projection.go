package checkin

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RowKind is the kind of a projected row: one of the source kinds, or
// "owner" for a guest list owner.
type RowKind string

const OwnerRow RowKind = "owner"

// Row is one line of the unified door list.
type Row struct {
	Key         string           `json:"key"`
	Kind        RowKind          `json:"kind"`
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Phone       string           `json:"phone,omitempty"`
	Owner       string           `json:"owner,omitempty"`
	Origin      string           `json:"origin,omitempty"`
	Date        string           `json:"date,omitempty"`
	Time        string           `json:"time,omitempty"`
	Table       string           `json:"table,omitempty"`
	Area        string           `json:"area,omitempty"`
	People      int              `json:"people"`
	Status      Status           `json:"status"`
	Concluded   bool             `json:"concluded"`
	Cancelled   bool             `json:"cancelled,omitempty"`
	CheckinAt   *time.Time       `json:"checkin_at,omitempty"`
	CheckoutAt  *time.Time       `json:"checkout_at,omitempty"`
	FeeKind     FeeKind          `json:"entry_fee_kind,omitempty"`
	FeeAmount   *decimal.Decimal `json:"entry_fee_amount,omitempty"`
	GuestListID string           `json:"guest_list_id,omitempty"`
	PromoterID  string           `json:"promoter_id,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// Filter narrows a projection. Zero values match everything except
// cancelled records.
type Filter struct {
	Query            string
	Kinds            []RowKind
	Status           Status
	IncludeCancelled bool
}

var folder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lower-cases s and strips accents so "Joao" finds "João".
func fold(s string) string {
	out, _, err := transform.String(folder, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// Project builds the unified, filtered and sorted view of a snapshot.
// Rows still open come first, then rows already out or concluded; within
// each group pending guests precede those inside, then by name.
func Project(snap Snapshot, f Filter) []Row {
	rows := make([]Row, 0, len(snap.Records)+len(snap.Lists))
	for _, r := range snap.RecordList() {
		rows = append(rows, Row{
			Key:         r.Key(),
			Kind:        RowKind(r.Kind),
			ID:          r.ID,
			Name:        r.DisplayName,
			Phone:       r.Phone,
			Owner:       r.OwnerName,
			Origin:      r.OriginLabel,
			Date:        r.Date,
			Time:        r.Time,
			Table:       r.Table,
			Area:        r.Area,
			People:      r.People,
			Status:      r.Status(),
			Concluded:   snap.ListConcluded(r),
			Cancelled:   r.Cancelled(),
			CheckinAt:   r.CheckinAt,
			CheckoutAt:  r.CheckoutAt,
			FeeKind:     r.FeeKind,
			FeeAmount:   r.FeeAmount,
			GuestListID: r.GuestListID,
			PromoterID:  r.PromoterID,
			Notes:       r.Notes,
		})
	}
	for _, l := range snap.GuestLists() {
		rows = append(rows, Row{
			Key:         ownerKey(l.ID),
			Kind:        OwnerRow,
			ID:          l.ID,
			Name:        l.Owner.Name,
			Phone:       l.Owner.Phone,
			Owner:       l.Owner.Name,
			Origin:      l.OriginLabel,
			Date:        l.Date,
			Time:        l.Time,
			Table:       l.Table,
			Area:        l.Area,
			People:      l.ExpectedTotal,
			Status:      l.Owner.Status(),
			Concluded:   l.Concluded(),
			CheckinAt:   l.Owner.CheckinAt,
			CheckoutAt:  l.Owner.CheckoutAt,
			GuestListID: l.ID,
		})
	}

	q := fold(f.Query)
	kinds := make(map[RowKind]bool, len(f.Kinds))
	for _, k := range f.Kinds {
		kinds[k] = true
	}
	out := rows[:0]
	for _, r := range rows {
		if r.Cancelled && !f.IncludeCancelled {
			continue
		}
		if len(kinds) > 0 && !kinds[r.Kind] {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if q != "" && !r.matches(q) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.closed() != b.closed() {
			return !a.closed()
		}
		if sa, sb := statusRank(a.Status), statusRank(b.Status); sa != sb {
			return sa < sb
		}
		if na, nb := fold(a.Name), fold(b.Name); na != nb {
			return na < nb
		}
		return a.Key < b.Key
	})
	return out
}

func (r Row) closed() bool { return r.Concluded || r.Status == CheckedOut }

func (r Row) matches(q string) bool {
	for _, s := range []string{r.Name, r.Phone, r.Owner, r.Origin, r.Table, r.Area} {
		if s != "" && strings.Contains(fold(s), q) {
			return true
		}
	}
	return false
}

func statusRank(s Status) int {
	switch s {
	case Pending:
		return 0
	case CheckedIn:
		return 1
	}
	return 2
}

// ExportRow is the flat shape consumed by the spreadsheet export.
type ExportRow struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Name   string `json:"name"`
	Table  string `json:"table"`
	Area   string `json:"area"`
	Phone  string `json:"phone"`
	People int    `json:"people"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// ExportHeader names the export columns in order.
var ExportHeader = []string{"date", "time", "name", "table", "area", "phone", "people", "status", "notes"}

// Export flattens projected rows for the spreadsheet export.
func Export(rows []Row) []ExportRow {
	out := make([]ExportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, ExportRow{
			Date:   r.Date,
			Time:   r.Time,
			Name:   r.Name,
			Table:  r.Table,
			Area:   r.Area,
			Phone:  r.Phone,
			People: r.People,
			Status: statusLabel(r),
			Notes:  r.Notes,
		})
	}
	return out
}

func statusLabel(r Row) string {
	switch {
	case r.Cancelled:
		return "Cancelled"
	case r.Status == CheckedOut:
		return "Checked out"
	case r.Concluded:
		return "Concluded"
	case r.Status == CheckedIn:
		return "Checked in"
	}
	return "Pending"
}
