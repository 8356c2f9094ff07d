package checkin

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PromoterRevenue is the money attributed to one promoter.
type PromoterRevenue struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"entries"`
}

// RevenueLedger is derived from the records on every call and never
// patched incrementally.
type RevenueLedger struct {
	Total      decimal.Decimal             `json:"total"`
	ByFeeKind  map[FeeKind]decimal.Decimal `json:"by_fee_kind"`
	ByPromoter map[string]PromoterRevenue  `json:"by_promoter"`
}

// Promoters returns the per-promoter totals ordered by total, highest
// first, then by name.
func (l RevenueLedger) Promoters() []PromoterRevenue {
	out := make([]PromoterRevenue, 0, len(l.ByPromoter))
	for _, p := range l.ByPromoter {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Reconcile computes the revenue ledger of a snapshot. Only roster guests
// and promoter guests carry a fee; reservations and booths are ignored.
//
// A complimentary entry contributes zero whatever amount was recorded with
// it. An entry with no recognizable fee kind still counts towards the total
// and its promoter, but not towards any fee bucket.
func Reconcile(snap Snapshot) RevenueLedger {
	return ReconcileRecords(snap.RecordList(), snap.Promoters)
}

// ReconcileRecords is Reconcile over an explicit record set.
func ReconcileRecords(records []GuestRecord, promoters map[string]Promoter) RevenueLedger {
	l := RevenueLedger{
		Total:      decimal.Zero,
		ByFeeKind:  make(map[FeeKind]decimal.Decimal, len(FeeKinds)),
		ByPromoter: map[string]PromoterRevenue{},
	}
	for _, k := range FeeKinds {
		l.ByFeeKind[k] = decimal.Zero
	}
	for _, r := range records {
		if !r.Kind.RequiresFee() || !r.CheckedIn || r.FeeAmount == nil {
			continue
		}
		amt := *r.FeeAmount
		if r.FeeKind == Complimentary {
			amt = decimal.Zero
		}
		l.Total = l.Total.Add(amt)
		if _, ok := l.ByFeeKind[r.FeeKind]; ok {
			l.ByFeeKind[r.FeeKind] = l.ByFeeKind[r.FeeKind].Add(amt)
		}
		if r.PromoterID == "" {
			continue
		}
		p, ok := promoters[r.PromoterID]
		if !ok {
			continue
		}
		pr, ok := l.ByPromoter[p.ID]
		if !ok {
			pr = PromoterRevenue{ID: p.ID, Name: p.Name, Total: decimal.Zero}
		}
		pr.Total = pr.Total.Add(amt)
		pr.Count++
		l.ByPromoter[p.ID] = pr
	}
	return l
}
