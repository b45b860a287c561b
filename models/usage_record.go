package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is the immutable telemetry record emitted after a successful
// AI call. It is created once, never mutated, and appended to a sink.
type UsageRecord struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	UserID       string    `json:"user_id" db:"user_id"`
	CommandName  string    `json:"command_name" db:"command_name"`
	ModelUsed    string    `json:"model_used" db:"model_used"`
	ProviderName string    `json:"provider_name" db:"provider_name"`
	InputTokens  int       `json:"input_tokens" db:"input_tokens"`
	OutputTokens int       `json:"output_tokens" db:"output_tokens"`
	TotalTokens  int       `json:"total_tokens" db:"total_tokens"`
	TotalCost    float64   `json:"total_cost" db:"total_cost"`
	Currency     string    `json:"currency" db:"currency"`
	OutputType   string    `json:"output_type" db:"output_type"`
}

// TableName returns the table name for the UsageRecord model
func (UsageRecord) TableName() string {
	return "ai_usage_records"
}

// NewUsageRecord creates a new UsageRecord stamped with a fresh ID and the current time
func NewUsageRecord(userID, commandName string) *UsageRecord {
	return &UsageRecord{
		ID:          uuid.New(),
		Timestamp:   time.Now(),
		UserID:      userID,
		CommandName: commandName,
		Currency:    "USD",
	}
}
