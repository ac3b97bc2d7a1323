// Package handoff turns buyer-submitted onboarding fields into the artifacts
// the studio works from after payment: a sanitized config object, a
// CRM-readable summary sentence, and a tier/add-on-aware checklist.
package handoff

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
)

// sensitiveKeyPattern matches config keys that must never be stored or
// emailed, regardless of what the client sends.
var sensitiveKeyPattern = regexp.MustCompile(`(?i)(api[_\- ]?key|token|password|secret|webhook)`)

const projectEmailDomain = "projects.wardstudio.co"

// Selection is the purchase context the handoff is built against.
type Selection struct {
	OrderID     string
	TierID      catalog.TierID
	AddonIDs    []catalog.AddonID
	BookingMode enums.BookingMode
}

// Checklist partitions the post-purchase asks into what the buyer should
// send immediately and what is collected on the kickoff call.
type Checklist struct {
	SendNow      []string `json:"send_now"`
	DuringCall   []string `json:"during_call"`
	CallRequired bool     `json:"call_required"`
}

// Handoff is the full generated bundle.
type Handoff struct {
	ConfigObject map[string]any `json:"config_object"`
	ConfigJSON   string         `json:"config_json"`
	Sentence     string         `json:"config_sentence"`
	Checklist    Checklist      `json:"handoff_checklist"`
	ProjectEmail string         `json:"project_email"`
	StrippedKeys []string       `json:"stripped_keys,omitempty"`
}

// SanitizeConfig removes any key whose name matches the sensitive pattern
// and reports which keys were dropped, so the caller can warn the submitter.
// The input map is not mutated.
func SanitizeConfig(config map[string]any) (map[string]any, []string) {
	clean := make(map[string]any, len(config))
	var stripped []string
	for key, value := range config {
		if sensitiveKeyPattern.MatchString(key) {
			stripped = append(stripped, key)
			continue
		}
		clean[key] = value
	}
	sort.Strings(stripped)
	return clean, stripped
}

// Build generates the handoff bundle. It is pure: same config and selection,
// same output.
func Build(config map[string]any, selection Selection) (Handoff, error) {
	if _, err := catalog.TierByID(selection.TierID); err != nil {
		return Handoff{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "handoff selection")
	}

	clean, stripped := SanitizeConfig(config)

	raw, err := json.Marshal(clean)
	if err != nil {
		return Handoff{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode config")
	}

	return Handoff{
		ConfigObject: clean,
		ConfigJSON:   string(raw),
		Sentence:     buildSentence(clean, selection),
		Checklist:    buildChecklist(selection),
		ProjectEmail: ProjectEmail(stringField(clean, "business_name"), selection.OrderID),
		StrippedKeys: stripped,
	}, nil
}

// ProjectEmail derives a human-readable project alias from the business name
// and order id. It is an alias for people, not a unique key; identical
// business names with no order id will collide and that is accepted.
func ProjectEmail(businessName, orderID string) string {
	slug := slugify(businessName)
	if slug == "" {
		slug = "project"
	}
	if suffix := slugify(orderID); suffix != "" {
		slug = slug + "-" + suffix
	}
	return slug + "@" + projectEmailDomain
}

func buildSentence(config map[string]any, selection Selection) string {
	var fragments []string

	subject := stringField(config, "business_name")
	if subject == "" {
		subject = "The client"
	}
	if city := stringField(config, "city"); city != "" {
		subject = fmt.Sprintf("%s in %s", subject, city)
	}

	if tier, err := catalog.TierByID(selection.TierID); err == nil {
		fragments = append(fragments, fmt.Sprintf("%s is on the %s package", subject, tier.Name))
	} else {
		fragments = append(fragments, subject)
	}

	if names := addonNames(selection.AddonIDs); len(names) > 0 {
		fragments = append(fragments, "with "+strings.Join(names, ", "))
	}

	switch selection.BookingMode {
	case enums.BookingModeExternalLink:
		frag := "booking via external link"
		if url := stringField(config, "booking_url"); url != "" {
			frag = fmt.Sprintf("booking via external link (%s)", url)
		}
		fragments = append(fragments, frag)
	case enums.BookingModeIframeEmbed:
		fragments = append(fragments, "booking embedded on the site")
	}

	if area := stringField(config, "service_area"); area != "" {
		fragments = append(fragments, "serving "+area)
	}
	if tagline := stringField(config, "tagline"); tagline != "" {
		fragments = append(fragments, fmt.Sprintf("tagline %q", tagline))
	}
	if email := stringField(config, "email"); email != "" {
		fragments = append(fragments, "contact "+email)
	}

	return strings.Join(fragments, "; ") + "."
}

func buildChecklist(selection Selection) Checklist {
	list := Checklist{
		SendNow: []string{
			"Logo files (SVG or high-res PNG)",
			"Service list with short descriptions",
			"Business hours",
		},
	}

	switch selection.TierID {
	case catalog.TierGrowth:
		list.SendNow = append(list.SendNow, "Photo set for the gallery section")
	case catalog.TierProLaunch:
		list.SendNow = append(list.SendNow,
			"Photo set for the gallery section",
			"Brand guidelines or reference sites")
		list.DuringCall = append(list.DuringCall, "Launch plan review")
	}

	for _, id := range selection.AddonIDs {
		switch id {
		case catalog.AddonAdvancedEmailStyling:
			list.SendNow = append(list.SendNow, "Email template preferences and example emails")
		case catalog.AddonBookingSetupAssistance:
			list.DuringCall = append(list.DuringCall, "Booking provider account walkthrough")
		case catalog.AddonDeepAnalytics:
			list.DuringCall = append(list.DuringCall, "Analytics goals and conversion events")
		case catalog.AddonPriorityBuild:
			list.SendNow = append(list.SendNow, "Final content for all pages")
		case catalog.AddonCopyPolish:
			list.SendNow = append(list.SendNow, "Existing copy drafts")
		case catalog.AddonExtraRevisionRound:
			list.DuringCall = append(list.DuringCall, "Revision priorities")
		case catalog.AddonPhotoCuration:
			list.SendNow = append(list.SendNow, "Full raw photo library")
		case catalog.AddonDomainEmailSetup:
			list.DuringCall = append(list.DuringCall, "Domain registrar access walkthrough")
		}
	}

	if selection.BookingMode == enums.BookingModeIframeEmbed {
		list.DuringCall = append(list.DuringCall, "Verify the booking fallback link works")
	}

	list.CallRequired = callRequired(selection, list.DuringCall)
	return list
}

func callRequired(selection Selection, duringCall []string) bool {
	if selection.TierID == catalog.TierProLaunch {
		return true
	}
	if selection.BookingMode == enums.BookingModeIframeEmbed {
		return true
	}
	for _, id := range selection.AddonIDs {
		if catalog.RequiresCall(id) {
			return true
		}
	}
	return len(duringCall) > 0
}

func addonNames(ids []catalog.AddonID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if addon, err := catalog.AddonByID(id); err == nil {
			names = append(names, addon.Name)
		}
	}
	return names
}

func stringField(config map[string]any, key string) string {
	if value, ok := config[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

var slugCleanup = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(value string) string {
	slug := slugCleanup.ReplaceAllString(strings.ToLower(value), "-")
	return strings.Trim(slug, "-")
}
