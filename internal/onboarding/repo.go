package onboarding

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wardstudio/detailflow-backend/pkg/db/models"
)

// Repository persists onboarding submissions. Submissions are keyed by order
// id; a resubmission replaces the stored payload.
type Repository interface {
	Upsert(ctx context.Context, submission *models.OnboardingSubmission) (*models.OnboardingSubmission, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.OnboardingSubmission, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an onboarding repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, submission *models.OnboardingSubmission) (*models.OnboardingSubmission, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"order_uuid", "config_json", "asset_links", "stripped_keys", "updated_at",
			}),
		}).
		Create(submission).Error
	if err != nil {
		return nil, err
	}
	return submission, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.OnboardingSubmission, error) {
	var submission models.OnboardingSubmission
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &submission, nil
}
