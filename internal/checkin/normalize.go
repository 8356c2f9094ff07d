package checkin

import (
	"strings"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// Drop describes a raw item the normalizer rejected. Drops are never
// surfaced to staff; they are kept for debug logging only.
type Drop struct {
	Kind   SourceKind `json:"kind"`
	ID     string     `json:"id"`
	Reason string     `json:"reason"`
}

// statusEffect is what a recognized source status says about presence.
type statusEffect int

const (
	effectNone statusEffect = iota
	effectIn
	effectOut
	effectCancelled
)

// Reservation and booth statuses. The empty status is accepted because
// older reservations never set one.
var reservationStatuses = map[string]statusEffect{
	"":            effectNone,
	"new":         effectNone,
	"nova":        effectNone,
	"pending":     effectNone,
	"pendente":    effectNone,
	"confirmed":   effectNone,
	"confirmada":  effectNone,
	"seated":      effectIn,
	"checked-in":  effectIn,
	"checked_in":  effectIn,
	"check-in":    effectIn,
	"checked-out": effectOut,
	"checked_out": effectOut,
	"check-out":   effectOut,
	"completed":   effectOut,
	"concluida":   effectOut,
	"finalizada":  effectOut,
	"cancelled":   effectCancelled,
	"canceled":    effectCancelled,
	"cancelada":   effectCancelled,
	"no-show":     effectCancelled,
}

// Promoter guest statuses. A promoter guest must carry one of these.
var promoterStatuses = map[string]statusEffect{
	"pendente":   effectNone,
	"pending":    effectNone,
	"confirmado": effectNone,
	"confirmed":  effectNone,
	"check-in":   effectIn,
	"checked-in": effectIn,
	"check-out":  effectOut,
	"checkout":   effectOut,
	"cancelado":  effectCancelled,
	"cancelled":  effectCancelled,
}

func lookupStatus(set map[string]statusEffect, s string) (statusEffect, bool) {
	e, ok := set[strings.ToLower(strings.TrimSpace(s))]
	return e, ok
}

var failedSourceKinds = map[string]SourceKind{
	"reservations": TableReservation,
	"guest_lists":  RestaurantGuest,
	"promoters":    PromoterGuest,
	"booths":       BoothGuest,
}

// Normalize converts a bulk load into a Snapshot. Every raw item yields at
// most one GuestRecord; malformed or misclassified items are dropped and
// reported in the second return value.
func Normalize(raw model.RawLoadResult) (Snapshot, []Drop) {
	n := normalizer{snap: newSnapshot()}
	n.snap.Event = Event{
		ID:              coerceID(raw.Event.ID),
		Name:            strings.TrimSpace(raw.Event.Name),
		Date:            strings.TrimSpace(raw.Event.Date),
		StartTime:       strings.TrimSpace(raw.Event.StartTime),
		EstablishmentID: coerceID(raw.Event.EstablishmentID),
		Establishment:   strings.TrimSpace(raw.Event.Establishment),
	}
	n.snap.Summary = raw.Summary
	for _, s := range raw.FailedSources {
		if k, ok := failedSourceKinds[strings.ToLower(strings.TrimSpace(s))]; ok {
			n.snap.FailedSources = append(n.snap.FailedSources, k)
		}
	}

	for _, r := range raw.TableReservations {
		n.tableReservation(r)
	}
	for _, l := range raw.GuestLists {
		n.guestList(l)
	}
	for _, p := range raw.Promoters {
		n.promoter(p)
	}
	for _, b := range raw.Booths {
		n.booth(b)
	}
	n.snap.Dropped = len(n.drops)
	return n.snap, n.drops
}

// NormalizeRoster converts a freshly fetched roster for one list. Records
// that fail validation are dropped the same way a bulk load drops them.
func NormalizeRoster(list GuestList, guests []model.RawListGuest) ([]GuestRecord, []Drop) {
	n := normalizer{snap: newSnapshot()}
	out := make([]GuestRecord, 0, len(guests))
	for _, g := range guests {
		if r, ok := n.listGuest(list, g); ok && n.add(r) {
			out = append(out, r)
		}
	}
	return out, n.drops
}

// NormalizeReservations converts table reservations fetched outside a bulk
// load, e.g. by an additional reservation search.
func NormalizeReservations(raw []model.RawTableReservation) ([]GuestRecord, []Drop) {
	n := normalizer{snap: newSnapshot()}
	for _, r := range raw {
		n.tableReservation(r)
	}
	return n.snap.RecordList(), n.drops
}

type normalizer struct {
	snap  Snapshot
	drops []Drop
}

func (n *normalizer) drop(kind SourceKind, id, reason string) {
	n.drops = append(n.drops, Drop{Kind: kind, ID: id, Reason: reason})
}

func (n *normalizer) add(r GuestRecord) bool {
	k := r.Key()
	if _, dup := n.snap.Records[k]; dup {
		n.drop(r.Kind, r.ID, "duplicate id")
		return false
	}
	n.snap.Records[k] = r
	n.snap.Order = append(n.snap.Order, k)
	return true
}

// presence applies the flag values and a status effect, then enforces the
// record invariants: checked-out implies checked-in, timestamps only when
// the matching flag is set.
func presence(r *GuestRecord, in, out bool, effect statusEffect, checkin, checkout string) {
	switch effect {
	case effectIn:
		in = true
	case effectOut:
		in, out = true, true
	}
	if out {
		in = true
	}
	r.CheckedIn, r.CheckedOut = in, out
	if in {
		r.CheckinAt = parseTimestamp(checkin)
	}
	if out {
		r.CheckoutAt = parseTimestamp(checkout)
	}
}

func (n *normalizer) tableReservation(raw model.RawTableReservation) {
	id := coerceID(raw.ID)
	if id == "" {
		n.drop(TableReservation, "", "missing id")
		return
	}
	effect, ok := lookupStatus(reservationStatuses, raw.Status)
	if !ok {
		n.drop(TableReservation, id, "unrecognized status "+raw.Status)
		return
	}
	r := GuestRecord{
		Kind:         TableReservation,
		ID:           id,
		DisplayName:  strings.TrimSpace(raw.ClientName),
		Phone:        strings.TrimSpace(raw.Phone),
		Email:        strings.TrimSpace(raw.Email),
		OwnerName:    strings.TrimSpace(raw.ClientName),
		OriginLabel:  originOr(raw.Origin, "reservation"),
		Date:         strings.TrimSpace(raw.ReservationDate),
		Time:         strings.TrimSpace(raw.ReservationTime),
		Table:        strings.TrimSpace(raw.TableNumber),
		Area:         strings.TrimSpace(raw.AreaName),
		People:       coerceInt(raw.NumberOfPeople),
		Notes:        strings.TrimSpace(raw.Notes),
		SourceStatus: strings.TrimSpace(raw.Status),
	}
	presence(&r, coerceBool(raw.CheckedIn), coerceBool(raw.CheckedOut), effect, raw.CheckinTime, raw.CheckoutTime)
	n.add(r)
}

func (n *normalizer) guestList(raw model.RawGuestList) {
	id := coerceID(raw.ID)
	if id == "" {
		n.drop(RestaurantGuest, "", "guest list without id")
		return
	}
	if _, dup := n.snap.Lists[id]; dup {
		n.drop(RestaurantGuest, id, "duplicate guest list")
		return
	}
	l := GuestList{
		ID:            id,
		ReservationID: coerceID(raw.ReservationID),
		Owner: Owner{
			Name:  strings.TrimSpace(raw.OwnerName),
			Phone: strings.TrimSpace(raw.OwnerPhone),
		},
		Date:          strings.TrimSpace(raw.ReservationDate),
		Time:          strings.TrimSpace(raw.ReservationTime),
		Table:         strings.TrimSpace(raw.TableNumber),
		Area:          strings.TrimSpace(raw.AreaName),
		OriginLabel:   originOr(raw.Origin, "guest list"),
		Valid:         raw.IsValid == nil || coerceBool(raw.IsValid),
		ExpiresAt:     parseTimestamp(raw.ExpiresAt),
		ExpectedTotal: coerceInt(raw.TotalGuests),
	}
	in, out := coerceBool(raw.OwnerCheckedIn), coerceBool(raw.OwnerCheckedOut)
	if out {
		in = true
	}
	l.Owner.CheckedIn, l.Owner.CheckedOut = in, out
	if in {
		l.Owner.CheckinAt = parseTimestamp(raw.OwnerCheckinTime)
	}
	if out {
		l.Owner.CheckoutAt = parseTimestamp(raw.OwnerCheckoutTime)
	}

	for _, g := range raw.Guests {
		r, ok := n.listGuest(l, g)
		if !ok {
			continue
		}
		if n.add(r) {
			l.Roster = append(l.Roster, r.Key())
		}
	}
	n.snap.Lists[id] = l
	n.snap.ListOrder = append(n.snap.ListOrder, id)
}

func (n *normalizer) listGuest(l GuestList, raw model.RawListGuest) (GuestRecord, bool) {
	id := coerceID(raw.ID)
	if id == "" {
		n.drop(RestaurantGuest, "", "roster guest without id")
		return GuestRecord{}, false
	}
	r := GuestRecord{
		Kind:        RestaurantGuest,
		ID:          id,
		DisplayName: strings.TrimSpace(raw.Name),
		Phone:       strings.TrimSpace(raw.Phone),
		Email:       strings.TrimSpace(raw.Email),
		OwnerName:   l.Owner.Name,
		OriginLabel: l.OriginLabel,
		GuestListID: l.ID,
		Date:        l.Date,
		Time:        l.Time,
		Table:       l.Table,
		Area:        l.Area,
		People:      1,
	}
	presence(&r, coerceBool(raw.CheckedIn), coerceBool(raw.CheckedOut), effectNone, raw.CheckinTime, raw.CheckoutTime)
	fee(&r, raw.EntryFeeKind, raw.EntryFeeAmount)
	return r, true
}

func (n *normalizer) promoter(raw model.RawPromoter) {
	pid := coerceID(raw.ID)
	name := strings.TrimSpace(raw.Name)
	if pid != "" {
		n.snap.Promoters[pid] = Promoter{ID: pid, Name: name}
	}
	for _, g := range raw.Guests {
		n.promoterGuest(g, name)
	}
}

// promoterGuest validates the promoter shape strictly: the other sources
// carry email, document and free-form status fields, so their presence here
// means the record was misclassified upstream.
func (n *normalizer) promoterGuest(raw model.RawPromoterGuest, promoterName string) {
	id := coerceID(raw.ID)
	if id == "" {
		n.drop(PromoterGuest, "", "missing id")
		return
	}
	effect, ok := lookupStatus(promoterStatuses, raw.Status)
	if !ok {
		n.drop(PromoterGuest, id, "unrecognized status "+raw.Status)
		return
	}
	pid := coerceID(raw.PromoterID)
	if pid == "" {
		n.drop(PromoterGuest, id, "missing promoter id")
		return
	}
	if present(raw.Email) || present(raw.Document) || present(raw.StatusText) {
		n.drop(PromoterGuest, id, "foreign fields on promoter guest")
		return
	}
	origin := "promoter"
	if promoterName != "" {
		origin = "promoter " + promoterName
	}
	if present(raw.ListName) {
		origin = strings.TrimSpace(raw.ListName)
	}
	r := GuestRecord{
		Kind:         PromoterGuest,
		ID:           id,
		DisplayName:  strings.TrimSpace(raw.Name),
		Phone:        strings.TrimSpace(raw.Phone),
		OwnerName:    promoterName,
		OriginLabel:  origin,
		PromoterID:   pid,
		People:       1,
		Notes:        strings.TrimSpace(raw.Notes),
		SourceStatus: strings.TrimSpace(raw.Status),
	}
	presence(&r, coerceBool(raw.CheckedIn), false, effect, raw.CheckinTime, raw.CheckoutTime)
	fee(&r, raw.EntryFeeKind, raw.EntryFeeAmount)
	n.add(r)
}

func (n *normalizer) booth(raw model.RawBooth) {
	id := coerceID(raw.ID)
	if id == "" {
		n.drop(BoothGuest, "", "missing id")
		return
	}
	effect, ok := lookupStatus(reservationStatuses, raw.Status)
	if !ok {
		n.drop(BoothGuest, id, "unrecognized status "+raw.Status)
		return
	}
	r := GuestRecord{
		Kind:         BoothGuest,
		ID:           id,
		DisplayName:  strings.TrimSpace(raw.ClientName),
		Phone:        strings.TrimSpace(raw.Phone),
		OwnerName:    strings.TrimSpace(raw.ClientName),
		OriginLabel:  "booth",
		Date:         strings.TrimSpace(raw.ReservationDate),
		Time:         strings.TrimSpace(raw.ReservationTime),
		Table:        strings.TrimSpace(raw.BoothName),
		Area:         strings.TrimSpace(raw.AreaName),
		People:       coerceInt(raw.NumberOfPeople),
		Notes:        strings.TrimSpace(raw.Notes),
		SourceStatus: strings.TrimSpace(raw.Status),
	}
	presence(&r, coerceBool(raw.CheckedIn), coerceBool(raw.CheckedOut), effect, raw.CheckinTime, raw.CheckoutTime)
	n.add(r)
}

// fee records the classification only for people who are inside; the
// amount of a pending guest means nothing yet.
func fee(r *GuestRecord, kind string, amount any) {
	if !r.CheckedIn {
		return
	}
	if k, ok := parseFeeKind(kind); ok {
		r.FeeKind = k
	}
	if d, ok := coerceAmount(amount); ok {
		r.FeeAmount = &d
	}
}

func originOr(s, def string) string {
	if present(s) {
		return strings.TrimSpace(s)
	}
	return def
}

// Cancelled reports whether the source marked the record cancelled or as
// a no-show. Cancelled records stay searchable but are not expected guests.
func (r GuestRecord) Cancelled() bool {
	set := reservationStatuses
	if r.Kind == PromoterGuest {
		set = promoterStatuses
	}
	e, ok := lookupStatus(set, r.SourceStatus)
	return ok && e == effectCancelled
}
