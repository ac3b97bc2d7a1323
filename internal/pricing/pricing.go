// Package pricing computes deposit/total/remaining for a tier plus add-on
// selection. All functions are pure and total over the fixed catalog; money is
// integer cents so the deposit+remaining==total invariant holds exactly.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
)

// Quote is the computed price breakdown for one selection. Add-ons are half
// paid up front and half on the tier's final schedule.
type Quote struct {
	TierID                catalog.TierID
	AddonIDs              []catalog.AddonID
	AddonSubtotalCents    int
	TotalCents            int
	DepositTodayCents     int
	RemainingBalanceCents int
}

// Compute builds the quote for a tier and add-on set. Unknown tier or add-on
// ids are configuration errors and return an error rather than pricing to
// zero.
func Compute(tierID catalog.TierID, addonIDs []catalog.AddonID) (Quote, error) {
	tier, err := catalog.TierByID(tierID)
	if err != nil {
		return Quote{}, err
	}

	subtotal := 0
	seen := make(map[catalog.AddonID]bool, len(addonIDs))
	ids := make([]catalog.AddonID, 0, len(addonIDs))
	for _, id := range addonIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		addon, err := catalog.AddonByID(id)
		if err != nil {
			return Quote{}, fmt.Errorf("pricing selection: %w", err)
		}
		subtotal += addon.PriceCents
		ids = append(ids, id)
	}

	total := tier.BaseCents + subtotal
	deposit := tier.DepositCents + subtotal/2

	return Quote{
		TierID:                tierID,
		AddonIDs:              ids,
		AddonSubtotalCents:    subtotal,
		TotalCents:            total,
		DepositTodayCents:     deposit,
		RemainingBalanceCents: total - deposit,
	}, nil
}

// AddonSubtotalCents sums the fixed prices of the given add-ons.
func AddonSubtotalCents(addonIDs []catalog.AddonID) (int, error) {
	quote, err := Compute(catalog.TierStarter, addonIDs)
	if err != nil {
		return 0, err
	}
	return quote.AddonSubtotalCents, nil
}

// FormatUSD renders integer cents as a dollar string, e.g. 33500 -> "$335.00".
func FormatUSD(cents int) string {
	return "$" + decimal.NewFromInt(int64(cents)).Div(decimal.NewFromInt(100)).StringFixed(2)
}
