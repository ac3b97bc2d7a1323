package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wardstudio/detailflow-backend/pkg/db/models"
)

// Repository defines persistence operations for the orders table. Find
// methods return (nil, nil) when no row matches so callers can branch on
// presence without unwrapping gorm errors.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindByUUID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	StampEmailSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
