package email

import (
	"fmt"
	"strings"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/pricing"
	"github.com/wardstudio/detailflow-backend/pkg/config"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
)

func buyerConfirmation(order *models.Order, cfg config.SendgridConfig) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Thanks for your order!\n\n")
	fmt.Fprintf(&body, "Order number: %s\n", order.OrderID)

	if tier, err := catalog.TierByID(catalog.TierID(order.TierID)); err == nil {
		fmt.Fprintf(&body, "Package: %s\n", tier.Name)
	}
	for _, id := range order.AddonIDs {
		if addon, err := catalog.AddonByID(catalog.AddonID(id)); err == nil {
			fmt.Fprintf(&body, "Add-on: %s (%s)\n", addon.Name, pricing.FormatUSD(addon.PriceCents))
		}
	}
	if quote, err := quoteForOrder(order); err == nil {
		fmt.Fprintf(&body, "\nDeposit paid today: %s\n", pricing.FormatUSD(quote.DepositTodayCents))
		fmt.Fprintf(&body, "Remaining balance at launch: %s\n", pricing.FormatUSD(quote.RemainingBalanceCents))
	}
	fmt.Fprintf(&body, "\nWe'll reach out shortly with next steps for your site detailing.\n")
	fmt.Fprintf(&body, "\n%s\n", cfg.FromName)

	return Message{
		FromName:  cfg.FromName,
		FromEmail: cfg.FromEmail,
		ToEmail:   order.CustomerEmail,
		Subject:   fmt.Sprintf("Your order %s is confirmed", order.OrderID),
		PlainText: body.String(),
	}
}

func internalNotification(order *models.Order, cfg config.SendgridConfig) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "New paid order %s\n\n", order.OrderID)
	fmt.Fprintf(&body, "Customer: %s\n", order.CustomerEmail)
	fmt.Fprintf(&body, "Tier: %s\n", order.TierID)
	if len(order.AddonIDs) > 0 {
		fmt.Fprintf(&body, "Add-ons: %s\n", strings.Join(order.AddonIDs, ", "))
	}
	if quote, err := quoteForOrder(order); err == nil {
		fmt.Fprintf(&body, "Deposit collected: %s\n", pricing.FormatUSD(quote.DepositTodayCents))
		fmt.Fprintf(&body, "Remaining: %s\n", pricing.FormatUSD(quote.RemainingBalanceCents))
	}
	if order.StripeSessionID != nil {
		fmt.Fprintf(&body, "Session: %s\n", *order.StripeSessionID)
	}

	return Message{
		FromName:  cfg.FromName,
		FromEmail: cfg.FromEmail,
		ToEmail:   cfg.InternalInbox,
		Subject:   fmt.Sprintf("Paid: %s (%s)", order.OrderID, order.TierID),
		PlainText: body.String(),
	}
}

func buyerBookingConfirmation(input BookingConfirmedInput, cfg config.SendgridConfig) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Your kickoff call is booked.\n\n")
	fmt.Fprintf(&body, "Order number: %s\n", input.OrderID)
	if input.BookingTime != "" {
		fmt.Fprintf(&body, "When: %s\n", input.BookingTime)
	}
	fmt.Fprintf(&body, "\nWe'll walk through your selections and collect anything still missing.\n")
	fmt.Fprintf(&body, "\n%s\n", cfg.FromName)

	return Message{
		FromName:  cfg.FromName,
		FromEmail: cfg.FromEmail,
		ToEmail:   input.CustomerEmail,
		Subject:   fmt.Sprintf("Kickoff call booked for order %s", input.OrderID),
		PlainText: body.String(),
	}
}

func internalBookingNotification(input BookingConfirmedInput, cfg config.SendgridConfig) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Kickoff call booked for order %s\n\n", input.OrderID)
	fmt.Fprintf(&body, "Customer: %s\n", input.CustomerEmail)
	if input.BusinessName != "" {
		fmt.Fprintf(&body, "Business: %s\n", input.BusinessName)
	}
	if input.BookingTime != "" {
		fmt.Fprintf(&body, "When: %s\n", input.BookingTime)
	}

	return Message{
		FromName:  cfg.FromName,
		FromEmail: cfg.FromEmail,
		ToEmail:   cfg.InternalInbox,
		Subject:   fmt.Sprintf("Call booked: %s", input.OrderID),
		PlainText: body.String(),
	}
}

func onboardingSummary(input OnboardingSummaryInput, cfg config.SendgridConfig) Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Onboarding submitted for order %s\n\n", input.OrderID)
	if input.ProjectEmail != "" {
		fmt.Fprintf(&body, "Project alias: %s\n", input.ProjectEmail)
	}
	if input.Sentence != "" {
		fmt.Fprintf(&body, "\n%s\n", input.Sentence)
	}
	if len(input.SendNow) > 0 {
		fmt.Fprintf(&body, "\nClient sends now:\n")
		for _, item := range input.SendNow {
			fmt.Fprintf(&body, "  - %s\n", item)
		}
	}
	if len(input.DuringCall) > 0 {
		fmt.Fprintf(&body, "\nCollect on the call:\n")
		for _, item := range input.DuringCall {
			fmt.Fprintf(&body, "  - %s\n", item)
		}
	}
	if input.CallRequired {
		fmt.Fprintf(&body, "\nKickoff call required.\n")
	}
	if len(input.StrippedKeys) > 0 {
		fmt.Fprintf(&body, "\nStripped submitted keys: %s\n", strings.Join(input.StrippedKeys, ", "))
	}
	if input.ConfigJSON != "" {
		fmt.Fprintf(&body, "\nConfig:\n%s\n", input.ConfigJSON)
	}

	return Message{
		FromName:  cfg.FromName,
		FromEmail: cfg.FromEmail,
		ToEmail:   cfg.InternalInbox,
		Subject:   fmt.Sprintf("Onboarding: %s", input.OrderID),
		PlainText: body.String(),
	}
}

func quoteForOrder(order *models.Order) (pricing.Quote, error) {
	addonIDs := make([]catalog.AddonID, 0, len(order.AddonIDs))
	for _, id := range order.AddonIDs {
		addonIDs = append(addonIDs, catalog.AddonID(id))
	}
	return pricing.Compute(catalog.TierID(order.TierID), addonIDs)
}
