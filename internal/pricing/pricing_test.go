package pricing

import (
	"testing"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
)

func TestComputeGrowthWithEmailStyling(t *testing.T) {
	quote, err := Compute(catalog.TierGrowth, []catalog.AddonID{catalog.AddonAdvancedEmailStyling})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.TotalCents != 66900 {
		t.Errorf("total = %d, want 66900", quote.TotalCents)
	}
	if quote.DepositTodayCents != 33500 {
		t.Errorf("deposit = %d, want 33500", quote.DepositTodayCents)
	}
	if quote.RemainingBalanceCents != 33400 {
		t.Errorf("remaining = %d, want 33400", quote.RemainingBalanceCents)
	}
}

func TestDepositPlusRemainingEqualsTotal(t *testing.T) {
	allAddons := make([]catalog.AddonID, 0)
	for id := range catalog.Addons() {
		allAddons = append(allAddons, id)
	}

	subsets := [][]catalog.AddonID{
		nil,
		{catalog.AddonAdvancedEmailStyling},
		{catalog.AddonPriorityBuild, catalog.AddonCopyPolish},
		{catalog.AddonBookingSetupAssistance, catalog.AddonDeepAnalytics, catalog.AddonPhotoCuration},
		allAddons,
	}

	for tierID := range catalog.Tiers() {
		for _, subset := range subsets {
			quote, err := Compute(tierID, subset)
			if err != nil {
				t.Fatalf("tier %s: unexpected error: %v", tierID, err)
			}
			if got := quote.DepositTodayCents + quote.RemainingBalanceCents; got != quote.TotalCents {
				t.Errorf("tier %s addons %v: deposit+remaining = %d, total = %d", tierID, subset, got, quote.TotalCents)
			}
		}
	}
}

func TestComputeDeduplicatesAddons(t *testing.T) {
	quote, err := Compute(catalog.TierGrowth, []catalog.AddonID{
		catalog.AddonCopyPolish,
		catalog.AddonCopyPolish,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.AddonSubtotalCents != 9000 {
		t.Errorf("subtotal = %d, want 9000 (duplicate should count once)", quote.AddonSubtotalCents)
	}
}

func TestComputeUnknownTier(t *testing.T) {
	if _, err := Compute("platinum", nil); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestComputeUnknownAddon(t *testing.T) {
	if _, err := Compute(catalog.TierGrowth, []catalog.AddonID{"gold_leaf"}); err == nil {
		t.Fatal("expected error for unknown add-on")
	}
}

func TestFormatUSD(t *testing.T) {
	cases := map[int]string{
		33500: "$335.00",
		66900: "$669.00",
		9050:  "$90.50",
		0:     "$0.00",
	}
	for cents, want := range cases {
		if got := FormatUSD(cents); got != want {
			t.Errorf("FormatUSD(%d) = %s, want %s", cents, got, want)
		}
	}
}
