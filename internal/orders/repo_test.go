package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wardstudio/detailflow-backend/pkg/db/models"
	"github.com/wardstudio/detailflow-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, orderID string) *models.Order {
	t.Helper()

	order := &models.Order{
		OrderUUID:     uuid.New(),
		OrderID:       orderID,
		Status:        enums.OrderStatusCreated,
		ProductID:     "detailflow",
		TierID:        "launch",
		AddonIDs:      []string{"rush"},
		CustomerEmail: "buyer@example.com",
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryInsertAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, "DF-20260110-1234")

	byID, err := repo.FindByOrderID(ctx, "DF-20260110-1234")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, seeded.OrderUUID, byID.OrderUUID)
	assert.Equal(t, enums.OrderStatusCreated, byID.Status)
	assert.Equal(t, []string{"rush"}, byID.AddonIDs)

	byUUID, err := repo.FindByUUID(ctx, seeded.OrderUUID)
	require.NoError(t, err)
	require.NotNil(t, byUUID)
	assert.Equal(t, seeded.OrderID, byUUID.OrderID)
}

func TestRepositoryFindMissingReturnsNil(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	order, err := repo.FindByOrderID(context.Background(), "DF-00000000-0000")
	require.NoError(t, err)
	assert.Nil(t, order)

	order, err = repo.FindBySessionID(context.Background(), "cs_test_missing")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestRepositoryUpdateFields(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, "DF-20260110-5678")
	sessionID := "cs_test_abc123"

	err := repo.UpdateFields(ctx, seeded.OrderUUID, map[string]any{
		"stripe_session_id": sessionID,
		"status":            enums.OrderStatusPaid,
	})
	require.NoError(t, err)

	found, err := repo.FindBySessionID(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.OrderStatusPaid, found.Status)
}

func TestRepositoryStampEmailSentOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, "DF-20260110-9012")
	now := time.Now().UTC()

	won, err := repo.StampEmailSent(ctx, seeded.OrderUUID, now)
	require.NoError(t, err)
	assert.True(t, won, "first stamp should win")

	won, err = repo.StampEmailSent(ctx, seeded.OrderUUID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, won, "second stamp must lose to the first")

	found, err := repo.FindByUUID(ctx, seeded.OrderUUID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.EmailSentAt)
	assert.WithinDuration(t, now, *found.EmailSentAt, time.Second)
}

func TestRepositoryWithTx(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	assert.Equal(t, repo, repo.WithTx(nil), "nil tx keeps the same repository")

	err := db.Transaction(func(tx *gorm.DB) error {
		txRepo := repo.WithTx(tx)
		_, err := txRepo.Insert(context.Background(), &models.Order{
			OrderUUID: uuid.New(),
			OrderID:   "DF-20260110-3456",
			Status:    enums.OrderStatusCreated,
			ProductID: "detailflow",
			TierID:    "launch",
		})
		return err
	})
	require.NoError(t, err)

	found, err := repo.FindByOrderID(context.Background(), "DF-20260110-3456")
	require.NoError(t, err)
	assert.NotNil(t, found)
}
