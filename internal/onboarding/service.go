package onboarding

import (
	"context"
	"fmt"
	"strings"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/email"
	"github.com/wardstudio/detailflow-backend/internal/handoff"
	"github.com/wardstudio/detailflow-backend/internal/orders"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
)

// SubmitInput is the buyer's onboarding payload.
type SubmitInput struct {
	OrderID    string
	Config     map[string]any
	AssetLinks []string
}

// SubmitResult reports what was stored and what was stripped.
type SubmitResult struct {
	OrderID      string
	ProjectEmail string
	Checklist    handoff.Checklist
	Warning      string
}

// SummaryMailer forwards the generated handoff to the internal inbox.
type SummaryMailer interface {
	SendOnboardingSummary(ctx context.Context, input email.OnboardingSummaryInput) error
}

// Service stores onboarding submissions and forwards the handoff internally.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (SubmitResult, error)
}

type service struct {
	repo   Repository
	orders orders.Service
	mailer SummaryMailer
	logg   *logger.Logger
}

// NewService builds the onboarding service. The mailer may be nil; storage
// then happens without the internal notification.
func NewService(repo Repository, orderSvc orders.Service, mailer SummaryMailer, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("onboarding repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	return &service{
		repo:   repo,
		orders: orderSvc,
		mailer: mailer,
		logg:   logg,
	}, nil
}

// Submit sanitizes and stores the configuration for an order. Resubmission
// is allowed and replaces the stored payload; the upsert makes retries safe.
func (s *service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return SubmitResult{}, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}

	order, err := s.orders.GetByOrderID(ctx, input.OrderID)
	if err != nil {
		return SubmitResult{}, err
	}

	selection := selectionFromOrder(order, input.Config)
	built, err := handoff.Build(input.Config, selection)
	if err != nil {
		return SubmitResult{}, err
	}

	submission := &models.OnboardingSubmission{
		OrderID:      order.OrderID,
		OrderUUID:    &order.OrderUUID,
		ConfigJSON:   built.ConfigJSON,
		AssetLinks:   input.AssetLinks,
		StrippedKeys: built.StrippedKeys,
	}
	if _, err := s.repo.Upsert(ctx, submission); err != nil {
		return SubmitResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store onboarding submission")
	}

	if s.mailer != nil {
		summary := email.OnboardingSummaryInput{
			OrderID:      order.OrderID,
			ProjectEmail: built.ProjectEmail,
			Sentence:     built.Sentence,
			ConfigJSON:   built.ConfigJSON,
			SendNow:      built.Checklist.SendNow,
			DuringCall:   built.Checklist.DuringCall,
			CallRequired: built.Checklist.CallRequired,
			StrippedKeys: built.StrippedKeys,
		}
		if err := s.mailer.SendOnboardingSummary(ctx, summary); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.OrderID), "forward onboarding summary", err)
		}
	}

	result := SubmitResult{
		OrderID:      order.OrderID,
		ProjectEmail: built.ProjectEmail,
		Checklist:    built.Checklist,
	}
	if len(built.StrippedKeys) > 0 {
		result.Warning = fmt.Sprintf("removed sensitive keys: %s", strings.Join(built.StrippedKeys, ", "))
	}
	return result, nil
}

func selectionFromOrder(order *models.Order, config map[string]any) handoff.Selection {
	addonIDs := make([]catalog.AddonID, 0, len(order.AddonIDs))
	for _, id := range order.AddonIDs {
		addonIDs = append(addonIDs, catalog.AddonID(id))
	}

	mode := enums.BookingModeNone
	if raw, ok := config["booking_mode"].(string); ok {
		if parsed, err := enums.ParseBookingMode(raw); err == nil {
			mode = parsed
		}
	}

	return handoff.Selection{
		OrderID:     order.OrderID,
		TierID:      catalog.TierID(order.TierID),
		AddonIDs:    addonIDs,
		BookingMode: mode,
	}
}
