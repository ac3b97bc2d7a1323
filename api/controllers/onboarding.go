package controllers

import (
	"net/http"

	"github.com/wardstudio/detailflow-backend/api/responses"
	"github.com/wardstudio/detailflow-backend/api/validators"
	"github.com/wardstudio/detailflow-backend/internal/handoff"
	"github.com/wardstudio/detailflow-backend/internal/onboarding"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
)

type submitOnboardingRequest struct {
	OrderID    string         `json:"order_id" validate:"required"`
	Config     map[string]any `json:"config" validate:"required"`
	AssetLinks []string       `json:"asset_links" validate:"omitempty,dive,url"`
}

type submitOnboardingResponse struct {
	OK           bool              `json:"ok"`
	OrderID      string            `json:"order_id"`
	ProjectEmail string            `json:"project_email"`
	Checklist    onboardingSummary `json:"checklist"`
	Warning      string            `json:"warning,omitempty"`
}

type onboardingSummary struct {
	SendNow      []string `json:"send_now"`
	DuringCall   []string `json:"during_call"`
	CallRequired bool     `json:"call_required"`
}

// SubmitOnboarding stores the buyer's configuration for an order. Sensitive
// keys are stripped before storage and reported back in the warning.
func SubmitOnboarding(svc onboarding.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req submitOnboardingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Submit(ctx, onboarding.SubmitInput{
			OrderID:    validators.SanitizeString(req.OrderID, 32),
			Config:     req.Config,
			AssetLinks: req.AssetLinks,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, submitOnboardingResponse{
			OK:           true,
			OrderID:      result.OrderID,
			ProjectEmail: result.ProjectEmail,
			Checklist:    summaryFromChecklist(result.Checklist),
			Warning:      result.Warning,
		})
	}
}

func summaryFromChecklist(list handoff.Checklist) onboardingSummary {
	return onboardingSummary{
		SendNow:      list.SendNow,
		DuringCall:   list.DuringCall,
		CallRequired: list.CallRequired,
	}
}
