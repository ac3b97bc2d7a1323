package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/pkg/config"
	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
)

type recordingSender struct {
	sent []Message
	fail func(Message) error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	s.sent = append(s.sent, msg)
	if s.fail != nil {
		return s.fail(msg)
	}
	return nil
}

type stubIdemStore struct {
	setNXWon bool
	setNXErr error
	setKeys  []string
	deleted  []string
}

func (s *stubIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.setKeys = append(s.setKeys, key)
	return s.setNXWon, s.setNXErr
}

func (s *stubIdemStore) IdempotencyKey(scope, id string) string {
	return "df:idempotency:" + scope + ":" + id
}

func (s *stubIdemStore) Del(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	return nil
}

type stubStamper struct {
	won   bool
	err   error
	calls int
}

func (s *stubStamper) StampEmailSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.calls++
	return s.won, s.err
}

func testSendgridConfig() config.SendgridConfig {
	return config.SendgridConfig{
		APIKey:        "SG.test",
		FromEmail:     "studio@wardstudio.co",
		FromName:      "Ward Studio",
		FallbackFrom:  "onboarding@wardstudio.co",
		InternalInbox: "orders@wardstudio.co",
	}
}

func paidOrder() *models.Order {
	return &models.Order{
		OrderUUID:     uuid.New(),
		OrderID:       "DF-2026-0219-AB12",
		Status:        enums.OrderStatusPaid,
		ProductID:     catalog.ProductID,
		TierID:        string(catalog.TierGrowth),
		AddonIDs:      []string{string(catalog.AddonAdvancedEmailStyling)},
		CustomerEmail: "dana@example.com",
	}
}

// senderRejection mirrors the provider's sender-verification error body.
func senderRejection() error {
	return pkgerrors.New(pkgerrors.CodeDependency,
		"sendgrid send failed with status 403: The from address does not match a verified Sender Identity.")
}

// sandboxRejection mirrors the provider's single-recipient sandbox error body.
func sandboxRejection(allowed string) error {
	return pkgerrors.New(pkgerrors.CodeDependency,
		"sendgrid send failed with status 403: You can only send testing emails to your own email address ("+allowed+").")
}

func newTestService(t *testing.T, sender Sender, idem *stubIdemStore, stamper *stubStamper, emailCfg config.EmailConfig) Service {
	t.Helper()
	svc, err := NewService(sender, idem, stamper, testSendgridConfig(), emailCfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestBundleSendsBuyerAndInternal(t *testing.T) {
	sender := &recordingSender{}
	idem := &stubIdemStore{setNXWon: true}
	stamper := &stubStamper{won: true}
	svc := newTestService(t, sender, idem, stamper, config.EmailConfig{DedupTTL: time.Hour})

	result, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deduped {
		t.Error("fresh send must not report deduped")
	}
	if !result.SentClient || !result.SentInternal {
		t.Errorf("result = %+v, want both recipients sent", result)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sends = %d, want buyer + internal", len(sender.sent))
	}
	buyer, internal := sender.sent[0], sender.sent[1]
	if buyer.ToEmail != "dana@example.com" {
		t.Errorf("buyer to = %q", buyer.ToEmail)
	}
	if !strings.Contains(buyer.PlainText, "DF-2026-0219-AB12") {
		t.Error("buyer body must carry the order number")
	}
	if !strings.Contains(buyer.PlainText, "$335.00") {
		t.Errorf("buyer body must show the deposit, got:\n%s", buyer.PlainText)
	}
	if internal.ToEmail != "orders@wardstudio.co" {
		t.Errorf("internal to = %q", internal.ToEmail)
	}
	if stamper.calls != 1 {
		t.Errorf("stamp calls = %d, want 1", stamper.calls)
	}
	if len(idem.setKeys) != 1 || !strings.Contains(idem.setKeys[0], "order_confirmed") {
		t.Errorf("dedup keys = %v", idem.setKeys)
	}
}

func TestBundleDedupedByRedisMark(t *testing.T) {
	sender := &recordingSender{}
	idem := &stubIdemStore{setNXWon: false}
	stamper := &stubStamper{won: true}
	svc := newTestService(t, sender, idem, stamper, config.EmailConfig{DedupTTL: time.Hour})

	result, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Deduped {
		t.Error("replay must report deduped")
	}
	if result.SentClient || result.SentInternal {
		t.Errorf("result = %+v, deduped call must not report sends", result)
	}
	if len(sender.sent) != 0 {
		t.Errorf("deduped bundle must not send, got %d sends", len(sender.sent))
	}
	if stamper.calls != 0 {
		t.Error("deduped bundle must not stamp")
	}
}

func TestBundleDedupedByExistingStamp(t *testing.T) {
	sender := &recordingSender{}
	idem := &stubIdemStore{setNXWon: true}
	svc := newTestService(t, sender, idem, &stubStamper{}, config.EmailConfig{})

	order := paidOrder()
	at := time.Now()
	order.EmailSentAt = &at

	result, err := svc.SendOrderConfirmedBundle(context.Background(), order, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Deduped {
		t.Error("stamped order must report deduped")
	}
	if len(sender.sent) != 0 {
		t.Error("stamped order must not send again")
	}
	if len(idem.setKeys) != 0 {
		t.Error("db stamp check comes before the redis mark")
	}
}

func TestForceBypassesGuards(t *testing.T) {
	sender := &recordingSender{}
	idem := &stubIdemStore{setNXWon: false}
	stamper := &stubStamper{won: false}
	svc := newTestService(t, sender, idem, stamper, config.EmailConfig{})

	order := paidOrder()
	at := time.Now()
	order.EmailSentAt = &at

	result, err := svc.SendOrderConfirmedBundle(context.Background(), order, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deduped {
		t.Error("forced resend must not report deduped")
	}
	if len(sender.sent) != 2 {
		t.Errorf("forced resend must send both messages, got %d", len(sender.sent))
	}
	if len(idem.setKeys) != 0 {
		t.Error("force must not consult the redis mark")
	}
}

func TestPartialFailureStillSucceeds(t *testing.T) {
	sender := &recordingSender{fail: func(msg Message) error {
		if msg.ToEmail == "dana@example.com" {
			return errors.New("mailbox full")
		}
		return nil
	}}
	stamper := &stubStamper{won: true}
	svc := newTestService(t, sender, &stubIdemStore{setNXWon: true}, stamper, config.EmailConfig{})

	result, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false)
	if err != nil {
		t.Fatalf("one surviving message keeps the bundle successful: %v", err)
	}
	if result.SentClient {
		t.Error("buyer send failed, SentClient must be false")
	}
	if !result.SentInternal {
		t.Error("internal notification went through, SentInternal must be true")
	}
	if stamper.calls != 1 {
		t.Error("partial success must still stamp the order")
	}
}

func TestTotalFailureReArmsGuard(t *testing.T) {
	sendErr := errors.New("sendgrid down")
	sender := &recordingSender{fail: func(Message) error { return sendErr }}
	idem := &stubIdemStore{setNXWon: true}
	stamper := &stubStamper{won: true}
	svc := newTestService(t, sender, idem, stamper, config.EmailConfig{DedupTTL: time.Hour})

	_, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false)
	if err == nil {
		t.Fatal("expected error when both sends fail")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("error = %v, want dependency", err)
	}
	if len(idem.deleted) != 1 {
		t.Error("total failure must release the redis mark so a retry can send")
	}
	if stamper.calls != 0 {
		t.Error("a fully failed bundle must not stamp the order")
	}
}

func TestFallbackSenderRetryOnVerificationRejection(t *testing.T) {
	sender := &recordingSender{fail: func(msg Message) error {
		if msg.FromEmail == "studio@wardstudio.co" && msg.ToEmail == "dana@example.com" {
			return senderRejection()
		}
		return nil
	}}
	svc := newTestService(t, sender, &stubIdemStore{setNXWon: true}, &stubStamper{won: true}, config.EmailConfig{})

	result, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false)
	if err != nil {
		t.Fatalf("fallback sender should rescue the bundle: %v", err)
	}
	if !result.SentClient {
		t.Error("fallback delivery still counts as a client send")
	}

	var fallbackUsed bool
	for _, msg := range sender.sent {
		if msg.FromEmail == "onboarding@wardstudio.co" {
			fallbackUsed = true
		}
	}
	if !fallbackUsed {
		t.Error("retry must switch to the fallback from address")
	}
}

func TestNoFallbackRetryOnUnrelatedError(t *testing.T) {
	sender := &recordingSender{fail: func(msg Message) error {
		if msg.ToEmail == "dana@example.com" {
			return errors.New("mailbox full")
		}
		return nil
	}}
	svc := newTestService(t, sender, &stubIdemStore{setNXWon: true}, &stubStamper{won: true}, config.EmailConfig{})

	if _, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, msg := range sender.sent {
		if msg.FromEmail == "onboarding@wardstudio.co" {
			t.Fatal("a generic failure must not burn a retry from the fallback sender")
		}
	}
}

func TestSandboxRejectionRedirectsToAllowedRecipient(t *testing.T) {
	sender := &recordingSender{fail: func(msg Message) error {
		if msg.ToEmail == "dana@example.com" {
			return sandboxRejection("dev@wardstudio.co")
		}
		return nil
	}}
	svc := newTestService(t, sender, &stubIdemStore{setNXWon: true}, &stubStamper{won: true}, config.EmailConfig{})

	result, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false)
	if err != nil {
		t.Fatalf("sandbox redirect should rescue the bundle: %v", err)
	}
	if !result.SentClient {
		t.Error("redirected delivery still counts as a client send")
	}

	var redirected *Message
	for i := range sender.sent {
		if sender.sent[i].ToEmail == "dev@wardstudio.co" {
			redirected = &sender.sent[i]
		}
	}
	if redirected == nil {
		t.Fatalf("sends = %+v, want a resend to the allowed recipient", sender.sent)
	}
	if !strings.HasPrefix(redirected.Subject, "[TEST MODE REDIRECT] ") {
		t.Errorf("subject = %q", redirected.Subject)
	}
	if !strings.Contains(redirected.Subject, "dana@example.com") {
		t.Errorf("subject = %q, must annotate the intended recipient", redirected.Subject)
	}
}

func TestSandboxRedirectGivesUpWhenAlreadyAllowed(t *testing.T) {
	sender := &recordingSender{fail: func(msg Message) error {
		if msg.ToEmail == "dana@example.com" {
			return sandboxRejection("dana@example.com")
		}
		return nil
	}}
	svc := newTestService(t, sender, &stubIdemStore{setNXWon: true}, &stubStamper{won: true}, config.EmailConfig{})

	result, err := svc.SendOrderConfirmedBundle(context.Background(), paidOrder(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SentClient {
		t.Error("rejection naming the same recipient leaves nothing to redirect to")
	}
	for _, msg := range sender.sent {
		if strings.HasPrefix(msg.Subject, "[TEST MODE REDIRECT]") {
			t.Fatal("no redirect resend expected when the recipient already matches")
		}
	}
}

func TestBookingBundleHasNoDedupGuard(t *testing.T) {
	sender := &recordingSender{}
	idem := &stubIdemStore{setNXWon: true}
	svc := newTestService(t, sender, idem, &stubStamper{}, config.EmailConfig{})

	input := BookingConfirmedInput{
		OrderID:       "DF-2026-0219-AB12",
		CustomerEmail: "dana@example.com",
		BusinessName:  "Dana's Detailing",
		BookingTime:   "2026-02-24 10:00 MT",
	}
	for i := 0; i < 2; i++ {
		if err := svc.SendBookingConfirmedBundle(context.Background(), input); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(sender.sent) != 4 {
		t.Errorf("sends = %d, rebooking legitimately re-sends the bundle", len(sender.sent))
	}
	if len(idem.setKeys) != 0 {
		t.Error("booking bundles must not touch the dedup store")
	}
}
