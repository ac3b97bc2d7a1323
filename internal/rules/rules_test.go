package rules

import (
	"strings"
	"testing"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
)

func TestAddonAvailabilityTierAware(t *testing.T) {
	starter, err := AddonAvailability(catalog.TierStarter, catalog.AddonBookingSetupAssistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if starter.Enabled {
		t.Error("booking setup assistance should be disabled on starter")
	}
	if starter.Reason == "" {
		t.Error("disabled availability must carry a reason")
	}

	growth, err := AddonAvailability(catalog.TierGrowth, catalog.AddonBookingSetupAssistance)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !growth.Enabled {
		t.Error("booking setup assistance should be enabled on growth")
	}
}

func TestSanitizeAddonsForTier(t *testing.T) {
	kept, removed, err := SanitizeAddonsForTier(catalog.TierStarter, []catalog.AddonID{
		catalog.AddonBookingSetupAssistance,
		catalog.AddonCopyPolish,
		catalog.AddonDeepAnalytics,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 || kept[0] != catalog.AddonCopyPolish {
		t.Errorf("kept = %v, want [copy_polish]", kept)
	}
	if len(removed) != 2 {
		t.Errorf("removed = %v, want both starter-excluded add-ons", removed)
	}

	kept, removed, err = SanitizeAddonsForTier(catalog.TierGrowth, []catalog.AddonID{
		catalog.AddonBookingSetupAssistance,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 || len(removed) != 0 {
		t.Errorf("growth should keep booking_setup_assistance, got kept=%v removed=%v", kept, removed)
	}
}

func TestValidatePackageStep(t *testing.T) {
	cases := []struct {
		name  string
		input PackageStepInput
		valid bool
	}{
		{"no booking", PackageStepInput{BookingMode: enums.BookingModeNone}, true},
		{"external without url", PackageStepInput{BookingMode: enums.BookingModeExternalLink}, false},
		{"external with url", PackageStepInput{BookingMode: enums.BookingModeExternalLink, BookingURL: "https://cal.com/ward"}, true},
		{"iframe without embed", PackageStepInput{BookingMode: enums.BookingModeIframeEmbed}, false},
		{"iframe with embed", PackageStepInput{BookingMode: enums.BookingModeIframeEmbed, EmbedURL: "https://cal.com/embed/ward"}, true},
		{"unknown mode", PackageStepInput{BookingMode: "carrier_pigeon"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidatePackageStep(tc.input)
			if result.Valid != tc.valid {
				t.Errorf("valid = %v, want %v (errors: %v)", result.Valid, tc.valid, result.Errors)
			}
		})
	}
}

func TestValidateReadinessStep(t *testing.T) {
	all := append([]string(nil), catalog.ReadinessItems...)

	ready := ValidateReadinessStep(ReadinessInput{Choice: enums.ReadinessReadyNow, CompletedItems: all})
	if !ready.Valid {
		t.Errorf("full checklist should pass: %v", ready.Errors)
	}

	partial := ValidateReadinessStep(ReadinessInput{Choice: enums.ReadinessReadyNow, CompletedItems: all[:2]})
	if partial.Valid {
		t.Error("incomplete checklist with ready_now must be a hard error")
	}
	if len(partial.Errors) == 0 || !strings.Contains(partial.Errors[0], "missing") {
		t.Errorf("error should name missing items: %v", partial.Errors)
	}

	notReady := ValidateReadinessStep(ReadinessInput{Choice: enums.ReadinessNotReady})
	if !notReady.Valid {
		t.Error("not_ready has no checklist requirement")
	}
	if len(notReady.Notices) == 0 {
		t.Error("not_ready should notice the forced consultation")
	}
}

func TestValidateAddonConflicts(t *testing.T) {
	both, err := ValidateAddonConflicts([]catalog.AddonID{
		catalog.AddonPriorityBuild,
		catalog.AddonExtraRevisionRound,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if both.Valid {
		t.Fatal("conflict pair selected together must fail")
	}
	if len(both.Errors) != 1 {
		t.Fatalf("want exactly one error per violated pair, got %v", both.Errors)
	}
	if !strings.Contains(both.Errors[0], "Priority Build") || !strings.Contains(both.Errors[0], "Extra Revision Round") {
		t.Errorf("error must name both add-ons: %q", both.Errors[0])
	}

	single, err := ValidateAddonConflicts([]catalog.AddonID{catalog.AddonPriorityBuild})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !single.Valid || len(single.Errors) != 0 {
		t.Errorf("single member of a pair must not conflict: %v", single.Errors)
	}

	none, err := ValidateAddonConflicts(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !none.Valid {
		t.Error("empty selection must not conflict")
	}
}

func TestValidateSelection(t *testing.T) {
	ok := ValidateSelection(catalog.ProductID, catalog.TierGrowth, []catalog.AddonID{catalog.AddonAdvancedEmailStyling})
	if !ok.Valid {
		t.Errorf("valid selection rejected: %v", ok.Errors)
	}

	badProduct := ValidateSelection("other", catalog.TierGrowth, nil)
	if badProduct.Valid {
		t.Error("unknown product must be rejected")
	}

	ineligible := ValidateSelection(catalog.ProductID, catalog.TierStarter, []catalog.AddonID{catalog.AddonDeepAnalytics})
	if ineligible.Valid {
		t.Error("starter-excluded add-on must be rejected server-side")
	}
}
