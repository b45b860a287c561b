package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yamanotatsu/task-master-api/models"
	"github.com/yamanotatsu/task-master-api/repositories"
	"go.uber.org/zap"
)

// UsageRepository implements the repositories.UsageRepository interface
type UsageRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUsageRepository creates a new usage record repository
func NewUsageRepository(db *DB, logger *zap.Logger) repositories.UsageRepository {
	return &UsageRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new usage record
func (r *UsageRepository) Insert(ctx context.Context, record *models.UsageRecord) error {
	query := `
		INSERT INTO ai_usage_records (
			id, timestamp, user_id, command_name, model_used, provider_name,
			input_tokens, output_tokens, total_tokens, total_cost, currency, output_type
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.Timestamp,
		record.UserID,
		record.CommandName,
		record.ModelUsed,
		record.ProviderName,
		record.InputTokens,
		record.OutputTokens,
		record.TotalTokens,
		record.TotalCost,
		record.Currency,
		record.OutputType,
	)

	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	r.logger.Debug("usage record inserted",
		zap.String("id", record.ID.String()),
		zap.String("provider", record.ProviderName))
	return nil
}

// Append implements the telemetry.Sink interface so the repository can be
// plugged directly behind the recorder.
func (r *UsageRepository) Append(ctx context.Context, record *models.UsageRecord) error {
	return r.Insert(ctx, record)
}

// GetByID retrieves a usage record by ID
func (r *UsageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UsageRecord, error) {
	query := selectColumns + ` WHERE id = $1`

	record := &models.UsageRecord{}
	err := scanRecord(r.db.QueryRowContext(ctx, query, id), record)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("usage record %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get usage record: %w", err)
	}

	return record, nil
}

// GetByUserID retrieves usage records for a user with pagination
func (r *UsageRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.UsageRecord, error) {
	query := selectColumns + `
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// GetByDateRange retrieves usage records within a time window with pagination
func (r *UsageRepository) GetByDateRange(ctx context.Context, start, end time.Time, limit, offset int) ([]*models.UsageRecord, error) {
	query := selectColumns + `
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, start, end, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// TotalCostByUser returns the summed cost for a user within a time window
func (r *UsageRepository) TotalCostByUser(ctx context.Context, userID string, start, end time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(total_cost), 0)
		FROM ai_usage_records
		WHERE user_id = $1 AND timestamp >= $2 AND timestamp < $3
	`

	var total float64
	if err := r.db.QueryRowContext(ctx, query, userID, start, end).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum usage cost: %w", err)
	}

	return total, nil
}

const selectColumns = `
	SELECT id, timestamp, user_id, command_name, model_used, provider_name,
	       input_tokens, output_tokens, total_tokens, total_cost, currency, output_type
	FROM ai_usage_records
`

// scanner abstracts sql.Row and sql.Rows for scanRecord
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner, record *models.UsageRecord) error {
	return s.Scan(
		&record.ID,
		&record.Timestamp,
		&record.UserID,
		&record.CommandName,
		&record.ModelUsed,
		&record.ProviderName,
		&record.InputTokens,
		&record.OutputTokens,
		&record.TotalTokens,
		&record.TotalCost,
		&record.Currency,
		&record.OutputType,
	)
}

func collectRecords(rows *sql.Rows) ([]*models.UsageRecord, error) {
	var records []*models.UsageRecord
	for rows.Next() {
		record := &models.UsageRecord{}
		if err := scanRecord(rows, record); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage records: %w", err)
	}
	return records, nil
}
