// Package catalog holds the fixed DetailFlow product tables: three pricing
// tiers and the add-on list. The catalog is deliberately a closed set of
// constants so that adding a tier or add-on is a compile-visible change
// exercised by the pricing and eligibility code.
package catalog

import "fmt"

// ProductID is the single product this backend sells.
const ProductID = "detailflow"

type TierID string

const (
	TierStarter   TierID = "starter"
	TierGrowth    TierID = "growth"
	TierProLaunch TierID = "pro_launch"
)

type AddonID string

const (
	AddonAdvancedEmailStyling    AddonID = "advanced_email_styling"
	AddonBookingSetupAssistance  AddonID = "booking_setup_assistance"
	AddonDeepAnalytics           AddonID = "deep_analytics"
	AddonPriorityBuild           AddonID = "priority_build"
	AddonCopyPolish              AddonID = "copy_polish"
	AddonExtraRevisionRound      AddonID = "extra_revision_round"
	AddonPhotoCuration           AddonID = "photo_curation"
	AddonDomainEmailSetup        AddonID = "domain_email_setup"
)

// AddonGroup partitions add-ons in the purchase drawer UI. Pricing is uniform
// across groups.
type AddonGroup string

const (
	AddonGroupGeneral   AddonGroup = "general"
	AddonGroupReadiness AddonGroup = "readiness"
)

// Tier is one of the three fixed service packages. FinalCents is
// informational: it always equals BaseCents-DepositCents by construction.
type Tier struct {
	ID           TierID
	Name         string
	BaseCents    int
	DepositCents int
	FinalCents   int
}

// Addon is an optional paid feature layered onto a tier.
type Addon struct {
	ID         AddonID
	Name       string
	PriceCents int
	Group      AddonGroup
}

var tiers = map[TierID]Tier{
	TierStarter: {
		ID:           TierStarter,
		Name:         "Starter",
		BaseCents:    34900,
		DepositCents: 17500,
		FinalCents:   17400,
	},
	TierGrowth: {
		ID:           TierGrowth,
		Name:         "Growth",
		BaseCents:    54900,
		DepositCents: 27500,
		FinalCents:   27400,
	},
	TierProLaunch: {
		ID:           TierProLaunch,
		Name:         "Pro Launch",
		BaseCents:    89900,
		DepositCents: 44900,
		FinalCents:   45000,
	},
}

var addons = map[AddonID]Addon{
	AddonAdvancedEmailStyling: {
		ID:         AddonAdvancedEmailStyling,
		Name:       "Advanced Email Styling",
		PriceCents: 12000,
		Group:      AddonGroupGeneral,
	},
	AddonBookingSetupAssistance: {
		ID:         AddonBookingSetupAssistance,
		Name:       "Booking Setup Assistance",
		PriceCents: 15000,
		Group:      AddonGroupGeneral,
	},
	AddonDeepAnalytics: {
		ID:         AddonDeepAnalytics,
		Name:       "Deep Analytics",
		PriceCents: 18000,
		Group:      AddonGroupGeneral,
	},
	AddonPriorityBuild: {
		ID:         AddonPriorityBuild,
		Name:       "Priority Build",
		PriceCents: 20000,
		Group:      AddonGroupGeneral,
	},
	AddonCopyPolish: {
		ID:         AddonCopyPolish,
		Name:       "Copy Polish",
		PriceCents: 9000,
		Group:      AddonGroupGeneral,
	},
	AddonExtraRevisionRound: {
		ID:         AddonExtraRevisionRound,
		Name:       "Extra Revision Round",
		PriceCents: 11000,
		Group:      AddonGroupReadiness,
	},
	AddonPhotoCuration: {
		ID:         AddonPhotoCuration,
		Name:       "Photo Curation",
		PriceCents: 8000,
		Group:      AddonGroupReadiness,
	},
	AddonDomainEmailSetup: {
		ID:         AddonDomainEmailSetup,
		Name:       "Domain Email Setup",
		PriceCents: 9500,
		Group:      AddonGroupReadiness,
	},
}

// starterExcludedAddons are unavailable on the Starter tier.
var starterExcludedAddons = map[AddonID]bool{
	AddonBookingSetupAssistance: true,
	AddonDeepAnalytics:          true,
}

// ConflictPair names two mutually exclusive add-ons.
type ConflictPair struct {
	A AddonID
	B AddonID
}

// conflictPairs lists add-on combinations that cannot be purchased together.
var conflictPairs = []ConflictPair{
	{A: AddonPriorityBuild, B: AddonExtraRevisionRound},
	{A: AddonCopyPolish, B: AddonPhotoCuration},
}

// callRequiredAddons force a kickoff call when selected.
var callRequiredAddons = map[AddonID]bool{
	AddonBookingSetupAssistance: true,
	AddonDomainEmailSetup:       true,
}

// ReadinessItems is the pre-checkout checklist. "Ready now" requires every
// item to be confirmed before payment.
var ReadinessItems = []string{
	"logo_files",
	"service_list",
	"service_area",
	"business_hours",
	"photo_set",
}

// TierByID returns the tier or an error for unknown ids. Unknown ids are
// programmer/configuration errors, never user input problems.
func TierByID(id TierID) (Tier, error) {
	tier, ok := tiers[id]
	if !ok {
		return Tier{}, fmt.Errorf("unknown tier %q", id)
	}
	return tier, nil
}

// AddonByID returns the add-on or an error for unknown ids.
func AddonByID(id AddonID) (Addon, error) {
	addon, ok := addons[id]
	if !ok {
		return Addon{}, fmt.Errorf("unknown add-on %q", id)
	}
	return addon, nil
}

// IsValidTier reports whether the id names a catalog tier.
func IsValidTier(id TierID) bool {
	_, ok := tiers[id]
	return ok
}

// IsValidAddon reports whether the id names a catalog add-on.
func IsValidAddon(id AddonID) bool {
	_, ok := addons[id]
	return ok
}

// IsExcludedForTier reports whether the add-on is unavailable on the tier.
func IsExcludedForTier(tier TierID, addon AddonID) bool {
	if tier != TierStarter {
		return false
	}
	return starterExcludedAddons[addon]
}

// RequiresCall reports whether the add-on forces a kickoff call.
func RequiresCall(addon AddonID) bool {
	return callRequiredAddons[addon]
}

// ConflictPairs returns the configured mutually exclusive add-on pairs.
func ConflictPairs() []ConflictPair {
	out := make([]ConflictPair, len(conflictPairs))
	copy(out, conflictPairs)
	return out
}

// Tiers returns every tier keyed by id.
func Tiers() map[TierID]Tier {
	out := make(map[TierID]Tier, len(tiers))
	for id, tier := range tiers {
		out[id] = tier
	}
	return out
}

// Addons returns every add-on keyed by id.
func Addons() map[AddonID]Addon {
	out := make(map[AddonID]Addon, len(addons))
	for id, addon := range addons {
		out[id] = addon
	}
	return out
}
