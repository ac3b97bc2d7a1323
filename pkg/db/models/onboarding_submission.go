package models

import (
	"time"

	"github.com/google/uuid"
)

// OnboardingSubmission stores the sanitized post-purchase configuration the
// buyer submits from the handoff drawer. Keyed by order id; resubmission
// overwrites the previous payload.
type OnboardingSubmission struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      string     `gorm:"column:order_id;not null;uniqueIndex:idx_onboarding_order_id"`
	OrderUUID    *uuid.UUID `gorm:"column:order_uuid;type:uuid"`
	ConfigJSON   string     `gorm:"column:config_json;type:jsonb;not null"`
	AssetLinks   []string   `gorm:"column:asset_links;type:jsonb;serializer:json"`
	StrippedKeys []string   `gorm:"column:stripped_keys;type:jsonb;serializer:json"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (OnboardingSubmission) TableName() string {
	return "onboarding_submissions"
}
