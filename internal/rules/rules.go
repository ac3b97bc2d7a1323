// Package rules implements the eligibility and step-gating checks of the
// purchase drawer. Validators report user-input problems as Result values and
// never panic; unknown catalog ids are programmer errors and surface as error
// returns.
package rules

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
)

// Result is the outcome of a validation step. Notices are advisory and do not
// block progress.
type Result struct {
	Valid   bool
	Errors  []string
	Notices []string
}

func valid() Result {
	return Result{Valid: true}
}

func invalid(errs ...string) Result {
	return Result{Valid: false, Errors: errs}
}

// Availability explains whether an add-on can be selected on a tier, with a
// buyer-facing reason when it cannot.
type Availability struct {
	Enabled bool
	Reason  string
}

// AddonAvailability reports whether an add-on is selectable on the tier. It
// returns a reason instead of an error so the UI can explain the greyed-out
// option.
func AddonAvailability(tier catalog.TierID, addon catalog.AddonID) (Availability, error) {
	if !catalog.IsValidTier(tier) {
		return Availability{}, fmt.Errorf("unknown tier %q", tier)
	}
	meta, err := catalog.AddonByID(addon)
	if err != nil {
		return Availability{}, err
	}
	if catalog.IsExcludedForTier(tier, addon) {
		return Availability{
			Enabled: false,
			Reason:  fmt.Sprintf("%s is not available on the Starter package", meta.Name),
		}, nil
	}
	return Availability{Enabled: true}, nil
}

// SanitizeAddonsForTier partitions candidate add-ons into kept and removed for
// the tier. Used when the buyer switches tier after selecting add-ons: now
// ineligible selections are silently dropped.
func SanitizeAddonsForTier(tier catalog.TierID, addonIDs []catalog.AddonID) (kept, removed []catalog.AddonID, err error) {
	if !catalog.IsValidTier(tier) {
		return nil, nil, fmt.Errorf("unknown tier %q", tier)
	}
	for _, id := range addonIDs {
		if !catalog.IsValidAddon(id) {
			return nil, nil, fmt.Errorf("unknown add-on %q", id)
		}
		if catalog.IsExcludedForTier(tier, id) {
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	return kept, removed, nil
}

// PackageStepInput carries the fields gated by the package-selection step.
type PackageStepInput struct {
	BookingMode enums.BookingMode
	BookingURL  string
	EmbedURL    string
}

// ValidatePackageStep enforces booking-mode-specific field requirements.
func ValidatePackageStep(input PackageStepInput) Result {
	if !input.BookingMode.IsValid() {
		return invalid(fmt.Sprintf("unknown booking mode %q", input.BookingMode))
	}

	var errs []string
	switch input.BookingMode {
	case enums.BookingModeExternalLink:
		if !isHTTPURL(input.BookingURL) {
			errs = append(errs, "external link booking requires a valid booking URL")
		}
	case enums.BookingModeIframeEmbed:
		if !isHTTPURL(input.EmbedURL) {
			errs = append(errs, "iframe booking requires a valid embed URL")
		}
	}

	if len(errs) > 0 {
		return invalid(errs...)
	}
	return valid()
}

// ReadinessInput carries the readiness-gate answers.
type ReadinessInput struct {
	Choice         enums.ReadinessChoice
	CompletedItems []string
}

// ValidateReadinessStep gates the move into payment. "Ready now" requires the
// full checklist; "not ready" passes but forces a consultation downstream.
func ValidateReadinessStep(input ReadinessInput) Result {
	if !input.Choice.IsValid() {
		return invalid(fmt.Sprintf("unknown readiness choice %q", input.Choice))
	}

	if input.Choice == enums.ReadinessNotReady {
		return Result{
			Valid:   true,
			Notices: []string{"a consultation call will be scheduled before the build starts"},
		}
	}

	return ValidateRequiredItems(input.CompletedItems)
}

// ValidateRequiredItems checks the completed set against the full readiness
// checklist. Moving to payment with an incomplete checklist is a hard error.
func ValidateRequiredItems(completed []string) Result {
	done := make(map[string]bool, len(completed))
	for _, item := range completed {
		done[item] = true
	}

	var missing []string
	for _, item := range catalog.ReadinessItems {
		if !done[item] {
			missing = append(missing, item)
		}
	}

	if len(missing) > 0 {
		return invalid(fmt.Sprintf("readiness checklist incomplete: missing %s", strings.Join(missing, ", ")))
	}
	return valid()
}

// ValidateAddonConflicts reports one error per violated conflict pair, naming
// both add-ons.
func ValidateAddonConflicts(addonIDs []catalog.AddonID) (Result, error) {
	selected := make(map[catalog.AddonID]bool, len(addonIDs))
	for _, id := range addonIDs {
		if !catalog.IsValidAddon(id) {
			return Result{}, fmt.Errorf("unknown add-on %q", id)
		}
		selected[id] = true
	}

	var errs []string
	for _, pair := range catalog.ConflictPairs() {
		if selected[pair.A] && selected[pair.B] {
			a, _ := catalog.AddonByID(pair.A)
			b, _ := catalog.AddonByID(pair.B)
			errs = append(errs, fmt.Sprintf("%s cannot be combined with %s", a.Name, b.Name))
		}
	}

	if len(errs) > 0 {
		return invalid(errs...), nil
	}
	return valid(), nil
}

// ValidateSelection is the server-side recheck applied on order and session
// creation: catalog membership, tier eligibility, and conflicts. The server
// never trusts client-echoed selections or totals.
func ValidateSelection(productID string, tier catalog.TierID, addonIDs []catalog.AddonID) Result {
	var errs []string

	if productID != catalog.ProductID {
		errs = append(errs, fmt.Sprintf("unknown product %q", productID))
	}
	if !catalog.IsValidTier(tier) {
		errs = append(errs, fmt.Sprintf("unknown tier %q", tier))
	}

	for _, id := range addonIDs {
		if !catalog.IsValidAddon(id) {
			errs = append(errs, fmt.Sprintf("unknown add-on %q", id))
			continue
		}
		if catalog.IsValidTier(tier) && catalog.IsExcludedForTier(tier, id) {
			addon, _ := catalog.AddonByID(id)
			errs = append(errs, fmt.Sprintf("%s is not available on the %s package", addon.Name, tier))
		}
	}

	if len(errs) == 0 {
		if conflicts, err := ValidateAddonConflicts(addonIDs); err == nil && !conflicts.Valid {
			errs = append(errs, conflicts.Errors...)
		}
	}

	if len(errs) > 0 {
		return invalid(errs...)
	}
	return valid()
}

func isHTTPURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
