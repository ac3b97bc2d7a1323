package onboarding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/email"
	"github.com/wardstudio/detailflow-backend/internal/orders"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
)

type stubRepo struct {
	upserts []*models.OnboardingSubmission
	err     error
}

func (s *stubRepo) Upsert(ctx context.Context, submission *models.OnboardingSubmission) (*models.OnboardingSubmission, error) {
	s.upserts = append(s.upserts, submission)
	if s.err != nil {
		return nil, s.err
	}
	return submission, nil
}

func (s *stubRepo) FindByOrderID(ctx context.Context, orderID string) (*models.OnboardingSubmission, error) {
	return nil, nil
}

type stubOrderService struct {
	order *models.Order
}

func (s *stubOrderService) Create(ctx context.Context, input orders.CreateInput) (*models.Order, error) {
	return nil, errors.New("not used")
}

func (s *stubOrderService) GetByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	if s.order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.order, nil
}

func (s *stubOrderService) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	return s.order, nil
}

func (s *stubOrderService) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return nil, errors.New("not used")
}

func (s *stubOrderService) AttachSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	return errors.New("not used")
}

func (s *stubOrderService) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return errors.New("not used")
}

func (s *stubOrderService) StampEmailSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return false, errors.New("not used")
}

func (s *stubOrderService) RecordRecovered(ctx context.Context, input orders.RecoveredInput) (*models.Order, error) {
	return nil, errors.New("not used")
}

func (s *stubOrderService) FillMissing(ctx context.Context, order *models.Order, patch orders.Backfill) (*models.Order, error) {
	return order, nil
}

type stubSummaryMailer struct {
	received []email.OnboardingSummaryInput
	err      error
}

func (s *stubSummaryMailer) SendOnboardingSummary(ctx context.Context, input email.OnboardingSummaryInput) error {
	s.received = append(s.received, input)
	return s.err
}

func paidOrder() *models.Order {
	return &models.Order{
		OrderUUID:     uuid.New(),
		OrderID:       "DF-2026-0219-AB12",
		Status:        enums.OrderStatusPaid,
		ProductID:     catalog.ProductID,
		TierID:        string(catalog.TierGrowth),
		AddonIDs:      []string{string(catalog.AddonDomainEmailSetup)},
		CustomerEmail: "dana@example.com",
	}
}

func newTestService(t *testing.T, repo Repository, orderSvc orders.Service, mailer SummaryMailer) Service {
	t.Helper()
	svc, err := NewService(repo, orderSvc, mailer, nil)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestSubmitStoresSanitizedConfig(t *testing.T) {
	repo := &stubRepo{}
	mailer := &stubSummaryMailer{}
	svc := newTestService(t, repo, &stubOrderService{order: paidOrder()}, mailer)

	result, err := svc.Submit(context.Background(), SubmitInput{
		OrderID: "DF-2026-0219-AB12",
		Config: map[string]any{
			"business_name": "Dana's Detailing",
			"booking_mode":  "external_link",
			"api_key":       "sk_live_leak",
		},
		AssetLinks: []string{"https://drive.example.com/logos"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(repo.upserts))
	}
	stored := repo.upserts[0]
	if strings.Contains(stored.ConfigJSON, "sk_live_leak") {
		t.Error("stored config must be sanitized")
	}
	if len(stored.StrippedKeys) != 1 || stored.StrippedKeys[0] != "api_key" {
		t.Errorf("stripped keys = %v", stored.StrippedKeys)
	}
	if stored.OrderUUID == nil {
		t.Error("submission must link back to the order row")
	}
	if !strings.Contains(result.Warning, "api_key") {
		t.Errorf("warning = %q, must name the stripped key", result.Warning)
	}
	if result.ProjectEmail == "" {
		t.Error("project email missing")
	}
	if len(mailer.received) != 1 {
		t.Fatalf("summary sends = %d, want 1", len(mailer.received))
	}
	if !mailer.received[0].CallRequired {
		t.Error("domain_email_setup forces a call; the summary must say so")
	}
}

func TestSubmitUnknownOrderFails(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubOrderService{}, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{OrderID: "DF-0000-0000-XXXX", Config: map[string]any{}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestSubmitRequiresOrderID(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, &stubOrderService{order: paidOrder()}, nil)

	_, err := svc.Submit(context.Background(), SubmitInput{Config: map[string]any{}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestSubmitResubmissionReplaces(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo, &stubOrderService{order: paidOrder()}, nil)

	for i := 0; i < 2; i++ {
		if _, err := svc.Submit(context.Background(), SubmitInput{
			OrderID: "DF-2026-0219-AB12",
			Config:  map[string]any{"business_name": "Dana's Detailing"},
		}); err != nil {
			t.Fatalf("submit %d: %v", i+1, err)
		}
	}
	if len(repo.upserts) != 2 {
		t.Errorf("upserts = %d, resubmission must be accepted", len(repo.upserts))
	}
}

func TestSubmitMailerFailureIsSoft(t *testing.T) {
	repo := &stubRepo{}
	mailer := &stubSummaryMailer{err: errors.New("sendgrid down")}
	svc := newTestService(t, repo, &stubOrderService{order: paidOrder()}, mailer)

	if _, err := svc.Submit(context.Background(), SubmitInput{
		OrderID: "DF-2026-0219-AB12",
		Config:  map[string]any{},
	}); err != nil {
		t.Fatalf("summary email failure must not fail the submission: %v", err)
	}
	if len(repo.upserts) != 1 {
		t.Error("submission must still be stored")
	}
}
