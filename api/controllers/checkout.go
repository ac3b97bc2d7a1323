package controllers

import (
	"net/http"
	"strings"

	"github.com/wardstudio/detailflow-backend/api/responses"
	"github.com/wardstudio/detailflow-backend/api/validators"
	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/checkout"
	"github.com/wardstudio/detailflow-backend/internal/flow"
	"github.com/wardstudio/detailflow-backend/pkg/config"
	pkgerrors "github.com/wardstudio/detailflow-backend/pkg/errors"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
)

type createCheckoutRequest struct {
	ProductID     string   `json:"productId" validate:"required"`
	TierID        string   `json:"tierId" validate:"required"`
	AddonIDs      []string `json:"addonIds"`
	CustomerEmail string   `json:"customerEmail" validate:"required,email"`
	OrderID       string   `json:"orderId" validate:"required"`
	OrderUUID     string   `json:"orderUuid" validate:"required,uuid"`
	Embedded      bool     `json:"embedded"`
}

type createCheckoutResponse struct {
	URL          string `json:"url,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	SessionID    string `json:"sessionId"`
	OrderID      string `json:"orderId"`
	LiveCheckout bool   `json:"liveCheckout"`
	Warning      string `json:"warning,omitempty"`
}

type verifyCheckoutResponse struct {
	Paid      bool   `json:"paid"`
	Status    string `json:"status"`
	OrderID   string `json:"orderId,omitempty"`
	OrderUUID string `json:"orderUuid,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// CreateCheckoutSession opens a provider session for an existing order. A key
// that is present but unusable is an operator problem, so it surfaces as 503
// diagnostics naming the offending environment keys; an absent key selects the
// placeholder path instead.
func CreateCheckoutSession(svc checkout.Service, stripeCfg config.StripeConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if strings.TrimSpace(stripeCfg.APIKey) != "" {
			if problems := stripeCfg.Diagnose(); len(problems) > 0 {
				err := pkgerrors.New(pkgerrors.CodeConfig, "stripe configuration unusable").
					WithDetails(map[string]any{"problems": problems})
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		var req createCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		addonIDs := make([]catalog.AddonID, 0, len(req.AddonIDs))
		for _, id := range req.AddonIDs {
			addonIDs = append(addonIDs, catalog.AddonID(id))
		}

		result, err := svc.CreateSession(ctx, flow.SessionInput{
			ProductID:     req.ProductID,
			TierID:        catalog.TierID(req.TierID),
			AddonIDs:      addonIDs,
			CustomerEmail: validators.SanitizeString(req.CustomerEmail, 254),
			OrderID:       req.OrderID,
			OrderUUID:     req.OrderUUID,
			Embedded:      req.Embedded,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createCheckoutResponse{
			URL:          result.URL,
			ClientSecret: result.ClientSecret,
			SessionID:    result.SessionID,
			OrderID:      result.OrderID,
			LiveCheckout: result.LiveCheckout,
			Warning:      result.Warning,
		})
	}
}

// VerifyCheckoutSession reports whether a session has been paid, marking the
// order and dispatching the confirmation bundle on first confirmation.
// Safe to call repeatedly from the return page.
func VerifyCheckoutSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sessionID := validators.SanitizeString(r.URL.Query().Get("session_id"), 255)
		result, err := svc.Verify(ctx, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, verifyCheckoutResponse{
			Paid:      result.Paid,
			Status:    result.Status,
			OrderID:   result.OrderID,
			OrderUUID: result.OrderUUID,
			Reason:    result.Reason,
		})
	}
}
