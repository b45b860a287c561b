package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yamanotatsu/task-master-api/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// UsageRepository handles AI usage record persistence
type UsageRepository interface {
	// Insert inserts a new usage record
	Insert(ctx context.Context, record *models.UsageRecord) error

	// GetByID retrieves a usage record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.UsageRecord, error)

	// GetByUserID retrieves usage records for a user with pagination
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.UsageRecord, error)

	// GetByDateRange retrieves usage records within a time window with pagination
	GetByDateRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*models.UsageRecord, error)

	// TotalCostByUser returns the summed cost for a user within a time window
	TotalCostByUser(ctx context.Context, userID string, start, end time.Time) (float64, error)
}
