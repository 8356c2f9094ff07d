package checkin

import (
	"math"
	"sort"
	"strings"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

// Progress is where a guest list stands on the gift ladder.
type Progress struct {
	ListID       string      `json:"guest_list_id"`
	Count        int         `json:"checked_in"`
	NextRule     *GiftRule   `json:"next_rule,omitempty"`
	Percent      int         `json:"progress_percent"`
	Awards       []GiftAward `json:"awards"`
	NewlyAwarded []GiftAward `json:"newly_awarded,omitempty"`
}

// ActiveRules keeps the active rules ordered by threshold, lowest first.
func ActiveRules(rules []GiftRule) []GiftRule {
	out := make([]GiftRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequiredCheckins < out[j].RequiredCheckins
	})
	return out
}

// NextRule returns the first active rule whose threshold is above count.
// rules must already be ordered, as ActiveRules returns them.
func NextRule(count int, rules []GiftRule) (GiftRule, bool) {
	for _, r := range rules {
		if r.Active && r.RequiredCheckins > count {
			return r, true
		}
	}
	return GiftRule{}, false
}

// ProgressPercent is round(100*count/threshold) clamped to [0,100]. With
// no rule left every threshold has been cleared and progress is 100.
func ProgressPercent(count int, next *GiftRule) int {
	if next == nil || next.RequiredCheckins <= 0 {
		return 100
	}
	p := int(math.Round(100 * float64(count) / float64(next.RequiredCheckins)))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// NewAwards returns the awards in refreshed that known does not contain,
// each reported once even if the server lists it twice.
func NewAwards(known, refreshed []GiftAward) []GiftAward {
	seen := make(map[string]struct{}, len(known))
	for _, a := range known {
		seen[a.identity()] = struct{}{}
	}
	var out []GiftAward
	for _, a := range refreshed {
		id := a.identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, a)
	}
	return out
}

// ComputeProgress derives the progress of one list from its checked-in
// count, the ordered active rules and the awards known before and after a
// refetch. Awards are sticky: the result keeps every known award even when
// refreshed no longer reports it.
func ComputeProgress(listID string, count int, rules []GiftRule, known, refreshed []GiftAward) Progress {
	p := Progress{ListID: listID, Count: count}
	if r, ok := NextRule(count, rules); ok {
		p.NextRule = &r
	}
	p.Percent = ProgressPercent(count, p.NextRule)
	p.NewlyAwarded = NewAwards(known, refreshed)
	p.Awards = append(append(make([]GiftAward, 0, len(known)+len(p.NewlyAwarded)), known...), p.NewlyAwarded...)
	return p
}

// AwardBook remembers the awards seen for each guest list during a session.
// It only grows, so a notification never fires twice for the same rule on
// the same list, even if the server drops and later re-adds the award.
type AwardBook struct {
	lists map[string][]GiftAward
}

// NewAwardBook returns an empty book.
func NewAwardBook() *AwardBook {
	return &AwardBook{lists: map[string][]GiftAward{}}
}

// Known returns the awards recorded for a list.
func (b *AwardBook) Known(listID string) []GiftAward {
	return append([]GiftAward(nil), b.lists[listID]...)
}

// Merge records refreshed for a list and returns the newly seen awards.
func (b *AwardBook) Merge(listID string, refreshed []GiftAward) []GiftAward {
	fresh := NewAwards(b.lists[listID], refreshed)
	if len(fresh) > 0 {
		b.lists[listID] = append(b.lists[listID], fresh...)
	}
	return fresh
}

// NormalizeGiftRules converts fetched rules. Rules without an id are
// dropped; a missing active flag means active because the backend only
// returns active rules unless asked otherwise.
func NormalizeGiftRules(raw []model.RawGiftRule) []GiftRule {
	out := make([]GiftRule, 0, len(raw))
	for _, r := range raw {
		id := coerceID(r.ID)
		if id == "" {
			continue
		}
		out = append(out, GiftRule{
			ID:               id,
			Description:      strings.TrimSpace(r.Description),
			RequiredCheckins: coerceInt(r.RequiredCheckins),
			Active:           r.Active == nil || coerceBool(r.Active),
		})
	}
	return ActiveRules(out)
}

// NormalizeGiftAwards converts fetched awards, dropping those without an id.
func NormalizeGiftAwards(raw []model.RawGiftAward) []GiftAward {
	out := make([]GiftAward, 0, len(raw))
	for _, a := range raw {
		id := coerceID(a.ID)
		if id == "" {
			continue
		}
		out = append(out, GiftAward{
			ID:               id,
			RuleID:           coerceID(a.RuleID),
			Description:      strings.TrimSpace(a.Description),
			RequiredCheckins: coerceInt(a.RequiredCheckins),
			AwardedAt:        parseTimestamp(a.AwardedAt),
		})
	}
	return out
}
