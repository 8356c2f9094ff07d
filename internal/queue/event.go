// Package queue defines the activity messages exchanged over the broker and
// the consumer that keeps the door activity log.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
)

// ActivityQueue is the durable queue every replica publishes to.
const ActivityQueue = "checkin.activity"

// GiftPayload describes an award announced with a gift_awarded event.
type GiftPayload struct {
	RuleID           string `json:"rule_id"`
	Description      string `json:"description"`
	RequiredCheckins int    `json:"required_checkins"`
}

// ActivityEvent is published after the upstream confirmed a check-in or
// check-out, or when a guest list unlocked a gift. It carries enough to
// write the activity log without querying the venue database.
type ActivityEvent struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	EventID  string       `json:"event_id"`
	Kind     string       `json:"kind,omitempty"`
	RecordID string       `json:"record_id,omitempty"`
	ListID   string       `json:"list_id,omitempty"`
	Name     string       `json:"name,omitempty"`
	FeeKind  string       `json:"fee_kind,omitempty"`
	Amount   string       `json:"amount,omitempty"`
	At       string       `json:"at"`
	StaffID  string       `json:"staff_id,omitempty"`
	Gift     *GiftPayload `json:"gift,omitempty"`
}

// FromActivity converts an engine activity into its wire form.
func FromActivity(a checkin.Activity) ActivityEvent {
	ev := ActivityEvent{
		ID:       a.ID,
		Type:     a.Type,
		EventID:  a.EventID,
		Kind:     a.Kind,
		RecordID: a.RecordID,
		ListID:   a.ListID,
		Name:     a.Name,
		FeeKind:  string(a.FeeKind),
		Amount:   a.Amount,
		At:       a.At.UTC().Format(time.RFC3339),
		StaffID:  a.StaffID,
	}
	if a.Gift != nil {
		ev.Gift = &GiftPayload{
			RuleID:           a.Gift.RuleID,
			Description:      a.Gift.Description,
			RequiredCheckins: a.Gift.RequiredCheckins,
		}
	}
	return ev
}

// Line renders the event as one activity log line.
func (ev ActivityEvent) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | event_id=%s", ev.At, ev.Type, ev.EventID)
	if ev.Kind != "" {
		fmt.Fprintf(&b, " | %s=%s", ev.Kind, ev.RecordID)
	}
	if ev.ListID != "" {
		fmt.Fprintf(&b, " | list_id=%s", ev.ListID)
	}
	if ev.Name != "" {
		fmt.Fprintf(&b, " | name=%q", ev.Name)
	}
	if ev.FeeKind != "" {
		fmt.Fprintf(&b, " | fee=%s", ev.FeeKind)
		if ev.Amount != "" {
			fmt.Fprintf(&b, " %s", ev.Amount)
		}
	}
	if ev.Gift != nil {
		fmt.Fprintf(&b, " | gift=%q at %d", ev.Gift.Description, ev.Gift.RequiredCheckins)
	}
	if ev.StaffID != "" {
		fmt.Fprintf(&b, " | staff=%s", ev.StaffID)
	}
	b.WriteByte('\n')
	return b.String()
}
