package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/rules"
	"github.com/wardstudio/detailflow-backend/pkg/db"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
	"github.com/wardstudio/detailflow-backend/pkg/metrics"
)

// maxIDAttempts bounds retries when a generated order id collides with an
// existing row.
const maxIDAttempts = 3

// CreateInput is the payload for creating an order before payment.
type CreateInput struct {
	ProductID     string
	TierID        catalog.TierID
	AddonIDs      []catalog.AddonID
	CustomerEmail string
}

// RecoveredInput inserts an already-paid order discovered via webhook when no
// row exists for the session.
type RecoveredInput struct {
	OrderID       string
	SessionID     string
	ProductID     string
	TierID        string
	AddonIDs      []string
	CustomerEmail string
}

// Backfill carries fields a reconciliation path wants to merge into an
// existing order. Only columns that are still empty are written.
type Backfill struct {
	CustomerEmail string
	TierID        string
	AddonIDs      []string
	SessionID     string
	MarkPaid      bool
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkPaid(ctx context.Context, id uuid.UUID) error
	StampEmailSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	RecordRecovered(ctx context.Context, input RecoveredInput) (*models.Order, error)
	FillMissing(ctx context.Context, order *models.Order, patch Backfill) (*models.Order, error)
}

type service struct {
	repo    Repository
	metrics *metrics.CheckoutMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the orders service.
func NewService(repo Repository, checkoutMetrics *metrics.CheckoutMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{
		repo:    repo,
		metrics: checkoutMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// Create validates the selection server-side, allocates a human-readable
// order id, and inserts the row in status created. Id collisions are retried
// with a fresh id up to maxIDAttempts times.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if result := rules.ValidateSelection(input.ProductID, input.TierID, input.AddonIDs); !result.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order selection rejected").
			WithDetails(map[string]any{"errors": result.Errors})
	}

	addonIDs := make([]string, 0, len(input.AddonIDs))
	for _, id := range input.AddonIDs {
		addonIDs = append(addonIDs, string(id))
	}

	var lastErr error
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		orderID, err := NewOrderID(s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order id")
		}

		order := &models.Order{
			OrderUUID:     uuid.New(),
			OrderID:       orderID,
			Status:        enums.OrderStatusCreated,
			ProductID:     input.ProductID,
			TierID:        string(input.TierID),
			AddonIDs:      addonIDs,
			CustomerEmail: input.CustomerEmail,
		}

		created, err := s.repo.Insert(ctx, order)
		if err == nil {
			s.metrics.IncOrderCreated()
			if s.logg != nil {
				logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID), map[string]any{
					"tier_id":     order.TierID,
					"addon_count": len(addonIDs),
				})
				s.logg.Info(logCtx, "order created")
			}
			return created, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert order")
		}
		lastErr = err
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{"order_id": orderID, "attempt": attempt})
			s.logg.Warn(logCtx, "order id collision, retrying")
		}
	}

	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr,
		fmt.Sprintf("could not allocate a unique order id after %d attempts", maxIDAttempts))
}

func (s *service) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	return s.repo.FindByOrderID(ctx, orderID)
}

func (s *service) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return s.repo.FindBySessionID(ctx, sessionID)
}

// AttachSession records the provider session id on the order. A newer session
// for the same order supersedes the previous one, so the column is
// overwritten on purpose.
func (s *service) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return s.repo.UpdateFields(ctx, id, map[string]any{"stripe_session_id": sessionID})
}

func (s *service) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return s.repo.UpdateFields(ctx, id, map[string]any{"status": enums.OrderStatusPaid})
}

func (s *service) StampEmailSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return s.repo.StampEmailSent(ctx, id, at)
}

// RecordRecovered inserts a paid order for a webhook whose session has no
// matching row. The id arrives from session metadata when present; otherwise
// a fresh one is allocated.
func (s *service) RecordRecovered(ctx context.Context, input RecoveredInput) (*models.Order, error) {
	orderID := input.OrderID
	if orderID == "" {
		generated, err := NewOrderID(s.now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order id")
		}
		orderID = generated
	}

	productID := input.ProductID
	if productID == "" {
		productID = catalog.ProductID
	}

	var sessionID *string
	if input.SessionID != "" {
		sessionID = &input.SessionID
	}

	order := &models.Order{
		OrderUUID:       uuid.New(),
		OrderID:         orderID,
		Status:          enums.OrderStatusPaid,
		ProductID:       productID,
		TierID:          input.TierID,
		AddonIDs:        input.AddonIDs,
		CustomerEmail:   input.CustomerEmail,
		StripeSessionID: sessionID,
	}

	created, err := s.repo.Insert(ctx, order)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			// A concurrent path created the row first; read it back.
			existing, findErr := s.repo.FindByOrderID(ctx, orderID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert recovered order")
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithOrderID(ctx, orderID), "order recovered from webhook with no existing row")
	}
	return created, nil
}

// FillMissing merges patch data into the order, writing only columns that are
// still empty. Populated fields are never overwritten, so a late or replayed
// webhook cannot clobber data the create endpoint already recorded.
func (s *service) FillMissing(ctx context.Context, order *models.Order, patch Backfill) (*models.Order, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fill missing: nil order")
	}

	updates := map[string]any{}
	if order.CustomerEmail == "" && patch.CustomerEmail != "" {
		updates["customer_email"] = patch.CustomerEmail
		order.CustomerEmail = patch.CustomerEmail
	}
	if order.TierID == "" && patch.TierID != "" {
		updates["tier_id"] = patch.TierID
		order.TierID = patch.TierID
	}
	if len(order.AddonIDs) == 0 && len(patch.AddonIDs) > 0 {
		updates["addon_ids"] = patch.AddonIDs
		order.AddonIDs = patch.AddonIDs
	}
	if (order.StripeSessionID == nil || *order.StripeSessionID == "") && patch.SessionID != "" {
		updates["stripe_session_id"] = patch.SessionID
		sid := patch.SessionID
		order.StripeSessionID = &sid
	}
	if patch.MarkPaid && order.Status == enums.OrderStatusCreated {
		updates["status"] = enums.OrderStatusPaid
		order.Status = enums.OrderStatusPaid
	}

	if len(updates) == 0 {
		return order, nil
	}
	if err := s.repo.UpdateFields(ctx, order.OrderUUID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fill missing order fields")
	}
	return order, nil
}
