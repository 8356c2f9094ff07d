package checkin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/model"
)

var ladder = []GiftRule{
	{ID: "r6", Description: "Bottle", RequiredCheckins: 6, Active: true},
	{ID: "r3", Description: "Drinks", RequiredCheckins: 3, Active: true},
	{ID: "r10", Description: "Cake", RequiredCheckins: 10, Active: false},
}

func TestComputeProgress_NextRuleAndPercent(t *testing.T) {
	rules := ActiveRules(ladder)
	require.Len(t, rules, 2)
	require.Equal(t, 3, rules[0].RequiredCheckins)

	p := ComputeProgress("7", 5, rules, nil, nil)
	require.NotNil(t, p.NextRule)
	require.Equal(t, 6, p.NextRule.RequiredCheckins)
	require.Equal(t, 83, p.Percent)

	p = ComputeProgress("7", 0, rules, nil, nil)
	require.Equal(t, 3, p.NextRule.RequiredCheckins)
	require.Equal(t, 0, p.Percent)

	p = ComputeProgress("7", 6, rules, nil, nil)
	require.Nil(t, p.NextRule)
	require.Equal(t, 100, p.Percent)

	p = ComputeProgress("7", 2, nil, nil, nil)
	require.Nil(t, p.NextRule)
	require.Equal(t, 100, p.Percent)
}

func TestComputeProgress_NewlyAwarded(t *testing.T) {
	known := []GiftAward{{ID: "a1", RuleID: "r3"}}
	refreshed := []GiftAward{{ID: "a1", RuleID: "r3"}, {ID: "a2", RuleID: "r6"}, {ID: "a3", RuleID: "r6"}}

	p := ComputeProgress("7", 6, ActiveRules(ladder), known, refreshed)
	require.Len(t, p.NewlyAwarded, 1)
	require.Equal(t, "a2", p.NewlyAwarded[0].ID)
	require.Len(t, p.Awards, 2)

	p = ComputeProgress("7", 6, ActiveRules(ladder), known, nil)
	require.Empty(t, p.NewlyAwarded)
	require.Equal(t, known, p.Awards, "awards are never lost")
}

func TestAwardBook_IsMonotonic(t *testing.T) {
	b := NewAwardBook()
	r3 := GiftAward{ID: "a1", RuleID: "r3"}
	r6 := GiftAward{ID: "a2", RuleID: "r6"}

	require.Equal(t, []GiftAward{r3}, b.Merge("7", []GiftAward{r3}))
	require.Empty(t, b.Merge("7", []GiftAward{r3}))

	// The server drops the award, then reports it again under a new id.
	require.Empty(t, b.Merge("7", nil))
	require.Empty(t, b.Merge("7", []GiftAward{{ID: "a9", RuleID: "r3"}}))
	require.Len(t, b.Known("7"), 1)

	require.Equal(t, []GiftAward{r6}, b.Merge("7", []GiftAward{r3, r6}))
	require.Len(t, b.Known("7"), 2)
	require.Empty(t, b.Known("8"))
}

func TestNormalizeGiftRules(t *testing.T) {
	rules := NormalizeGiftRules([]model.RawGiftRule{
		{ID: 2, Description: " Bottle ", RequiredCheckins: "6"},
		{ID: 1, Description: "Drinks", RequiredCheckins: 3, Active: 1},
		{ID: 3, Description: "Off", RequiredCheckins: 1, Active: "0"},
		{Description: "No id", RequiredCheckins: 2},
	})
	require.Len(t, rules, 2)
	require.Equal(t, "1", rules[0].ID)
	require.Equal(t, "Bottle", rules[1].Description)
	require.Equal(t, 6, rules[1].RequiredCheckins)
}

func TestNormalizeGiftAwards(t *testing.T) {
	awards := NormalizeGiftAwards([]model.RawGiftAward{
		{ID: 5, RuleID: 1, Description: "Drinks", AwardedAt: "2026-10-16 22:10:00"},
		{RuleID: 2},
	})
	require.Len(t, awards, 1)
	require.Equal(t, "1", awards[0].RuleID)
	require.NotNil(t, awards[0].AwardedAt)
}
