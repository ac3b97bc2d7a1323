package controllers

import (
	"net/http"

	"github.com/wardstudio/detailflow-backend/api/responses"
	"github.com/wardstudio/detailflow-backend/api/validators"
	"github.com/wardstudio/detailflow-backend/internal/catalog"
	"github.com/wardstudio/detailflow-backend/internal/orders"
	"github.com/wardstudio/detailflow-backend/pkg/logger"
)

type createOrderRequest struct {
	ProductID     string   `json:"product_id" validate:"required"`
	TierID        string   `json:"tier_id" validate:"required"`
	AddonIDs      []string `json:"addon_ids"`
	CustomerEmail string   `json:"customer_email" validate:"required,email"`
}

type createOrderResponse struct {
	OrderUUID string `json:"order_uuid"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

// CreateOrder inserts the order row before any payment session exists. The
// selection is revalidated server-side; an ineligible add-on set is a 400.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		addonIDs := make([]catalog.AddonID, 0, len(req.AddonIDs))
		for _, id := range req.AddonIDs {
			addonIDs = append(addonIDs, catalog.AddonID(id))
		}

		order, err := svc.Create(ctx, orders.CreateInput{
			ProductID:     req.ProductID,
			TierID:        catalog.TierID(req.TierID),
			AddonIDs:      addonIDs,
			CustomerEmail: validators.SanitizeString(req.CustomerEmail, 254),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createOrderResponse{
			OrderUUID: order.OrderUUID.String(),
			OrderID:   order.OrderID,
			Status:    string(order.Status),
		})
	}
}
