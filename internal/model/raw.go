package model

// Raw wire shapes as delivered by the venue backend. The upstream encodes
// many fields inconsistently (booleans as true/1/"1", ids as numbers or
// strings, amounts as numbers or strings) so those fields are typed as any
// and resolved by the checkin normalizer. Nothing in this file interprets
// values; it only mirrors what arrives on the wire or out of the database.

// RawEvent describes the event being worked at the door.
type RawEvent struct {
	ID              any    `json:"id"`
	Name            string `json:"name"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EstablishmentID any    `json:"establishment_id"`
	Establishment   string `json:"establishment_name"`
}

// RawTableReservation is a plain table reservation held by one named client.
type RawTableReservation struct {
	ID              any    `json:"id"`
	ClientName      string `json:"client_name"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	ReservationDate string `json:"reservation_date"`
	ReservationTime string `json:"reservation_time"`
	TableNumber     string `json:"table_number"`
	AreaName        string `json:"area_name"`
	NumberOfPeople  any    `json:"number_of_people"`
	Status          string `json:"status"`
	Origin          string `json:"origin,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CheckedIn       any    `json:"checked_in"`
	CheckinTime     string `json:"checkin_time,omitempty"`
	CheckedOut      any    `json:"checked_out"`
	CheckoutTime    string `json:"checkout_time,omitempty"`
}

// RawListGuest is one invitee on a restaurant guest list roster.
type RawListGuest struct {
	ID             any    `json:"id"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	CheckedIn      any    `json:"checked_in"`
	CheckinTime    string `json:"checkin_time,omitempty"`
	CheckedOut     any    `json:"checked_out"`
	CheckoutTime   string `json:"checkout_time,omitempty"`
	EntryFeeKind   string `json:"entry_fee_kind,omitempty"`
	EntryFeeAmount any    `json:"entry_fee_amount,omitempty"`
}

// RawGuestList is a group reservation: one owner plus a roster.
type RawGuestList struct {
	ID                any            `json:"id"`
	ReservationID     any            `json:"reservation_id"`
	OwnerName         string         `json:"owner_name"`
	OwnerPhone        string         `json:"owner_phone,omitempty"`
	ReservationDate   string         `json:"reservation_date"`
	ReservationTime   string         `json:"reservation_time"`
	TableNumber       string         `json:"table_number"`
	AreaName          string         `json:"area_name"`
	Origin            string         `json:"origin,omitempty"`
	IsValid           any            `json:"is_valid"`
	ExpiresAt         string         `json:"expires_at,omitempty"`
	TotalGuests       any            `json:"total_guests"`
	OwnerCheckedIn    any            `json:"owner_checked_in"`
	OwnerCheckinTime  string         `json:"owner_checkin_time,omitempty"`
	OwnerCheckedOut   any            `json:"owner_checked_out"`
	OwnerCheckoutTime string         `json:"owner_checkout_time,omitempty"`
	Guests            []RawListGuest `json:"guests"`
}

// RawPromoterGuest is a guest curated by a promoter. Email, Document and
// StatusText are not part of this shape; they are decoded only so the
// normalizer can reject records that carry them.
type RawPromoterGuest struct {
	ID             any    `json:"id"`
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Status         string `json:"status"`
	PromoterID     any    `json:"promoter_id"`
	ListName       string `json:"list_name,omitempty"`
	CheckedIn      any    `json:"checked_in"`
	CheckinTime    string `json:"checkin_time,omitempty"`
	CheckoutTime   string `json:"checkout_time,omitempty"`
	EntryFeeKind   string `json:"entry_fee_kind,omitempty"`
	EntryFeeAmount any    `json:"entry_fee_amount,omitempty"`
	Notes          string `json:"notes,omitempty"`

	Email      string `json:"email,omitempty"`
	Document   string `json:"document,omitempty"`
	StatusText string `json:"status_text,omitempty"`
}

// RawPromoter groups the guests a promoter brought to the event.
type RawPromoter struct {
	ID     any                `json:"id"`
	Name   string             `json:"name"`
	Guests []RawPromoterGuest `json:"guests"`
}

// RawBooth is a VIP booth booking tracked by headcount.
type RawBooth struct {
	ID              any    `json:"id"`
	ClientName      string `json:"client_name"`
	Phone           string `json:"phone,omitempty"`
	ReservationDate string `json:"reservation_date"`
	ReservationTime string `json:"reservation_time"`
	BoothName       string `json:"booth_name"`
	AreaName        string `json:"area_name"`
	NumberOfPeople  any    `json:"number_of_people"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
	CheckedIn       any    `json:"checked_in"`
	CheckinTime     string `json:"checkin_time,omitempty"`
	CheckedOut      any    `json:"checked_out"`
	CheckoutTime    string `json:"checkout_time,omitempty"`
}

// RawLoadResult is the bulk load response for one event. Any collection may
// be nil. FailedSources names the collections the backend could not load in
// this cycle ("reservations", "guest_lists", "promoters", "booths").
type RawLoadResult struct {
	Event             RawEvent              `json:"event"`
	TableReservations []RawTableReservation `json:"reservations"`
	GuestLists        []RawGuestList        `json:"guest_lists"`
	Promoters         []RawPromoter         `json:"promoters"`
	Booths            []RawBooth            `json:"booths"`
	Summary           map[string]any        `json:"summary,omitempty"`
	FailedSources     []string              `json:"failed_sources,omitempty"`
}

// RawActionResult is what a check-in or check-out call returns.
type RawActionResult struct {
	ID           any    `json:"id"`
	CheckinTime  string `json:"checkin_time,omitempty"`
	CheckoutTime string `json:"checkout_time,omitempty"`
	Message      string `json:"message,omitempty"`
}

// RawGiftRule is a configured check-in threshold.
type RawGiftRule struct {
	ID               any    `json:"id"`
	Description      string `json:"description"`
	RequiredCheckins any    `json:"required_checkins"`
	Active           any    `json:"active"`
	EstablishmentID  any    `json:"establishment_id,omitempty"`
	EventID          any    `json:"event_id,omitempty"`
}

// RawGiftAward is a gift already granted to a guest list.
type RawGiftAward struct {
	ID               any    `json:"id"`
	RuleID           any    `json:"rule_id"`
	Description      string `json:"description"`
	RequiredCheckins any    `json:"required_checkins"`
	AwardedAt        string `json:"awarded_at"`
}
