package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsageRecord(t *testing.T) {
	record := NewUsageRecord("user-1", "expand-task")

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.WithinDuration(t, time.Now(), record.Timestamp, time.Second)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "expand-task", record.CommandName)
	assert.Equal(t, "USD", record.Currency)
}

func TestUsageRecordJSON(t *testing.T) {
	record := NewUsageRecord("user-1", "add-task")
	record.ModelUsed = "claude-3-7-sonnet-20250219"
	record.ProviderName = "anthropic"
	record.InputTokens = 1000
	record.OutputTokens = 200
	record.TotalTokens = 1200
	record.TotalCost = 0.006
	record.OutputType = "cli"

	raw, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "anthropic", decoded["provider_name"])
	assert.Equal(t, "claude-3-7-sonnet-20250219", decoded["model_used"])
	assert.Equal(t, float64(1200), decoded["total_tokens"])
	assert.Equal(t, "cli", decoded["output_type"])
}

func TestUsageRecordTableName(t *testing.T) {
	assert.Equal(t, "ai_usage_records", UsageRecord{}.TableName())
}
