package telemetry

import (
	"context"

	"github.com/yamanotatsu/task-master-api/models"
	"github.com/yamanotatsu/task-master-api/services/pricing"
	"go.uber.org/zap"
)

// Input holds the facts of a completed AI call needed to build a usage record
type Input struct {
	UserID       string
	CommandName  string
	ProviderName string
	ModelID      string
	InputTokens  int
	OutputTokens int
	OutputType   string
}

// Recorder computes cost from token usage and appends usage records to a sink.
// It is strictly best-effort: it never returns an error and never blocks the
// primary AI call on sink failures.
type Recorder struct {
	table  *pricing.Table
	sink   Sink
	logger *zap.Logger
}

// NewRecorder creates a new telemetry recorder
func NewRecorder(table *pricing.Table, sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{
		table:  table,
		sink:   sink,
		logger: logger,
	}
}

// Record builds and emits a usage record. Returns nil when recording fails
// for any reason; failures are logged, never propagated.
func (r *Recorder) Record(ctx context.Context, in Input) (record *models.UsageRecord) {
	// Telemetry must never take down the call that produced it.
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("telemetry recording panicked", zap.Any("panic", rec))
			record = nil
		}
	}()

	totalCost, currency := r.table.Cost(in.ProviderName, in.ModelID, in.InputTokens, in.OutputTokens)

	record = models.NewUsageRecord(in.UserID, in.CommandName)
	record.ModelUsed = in.ModelID
	record.ProviderName = in.ProviderName
	record.InputTokens = in.InputTokens
	record.OutputTokens = in.OutputTokens
	record.TotalTokens = in.InputTokens + in.OutputTokens
	record.TotalCost = totalCost
	record.Currency = currency
	record.OutputType = in.OutputType

	if err := r.sink.Append(ctx, record); err != nil {
		r.logger.Warn("failed to append usage record",
			zap.String("provider", in.ProviderName),
			zap.String("model", in.ModelID),
			zap.Error(err))
		// The record itself is still valid; only persistence failed.
	}

	r.logger.Debug("usage recorded",
		zap.String("provider", record.ProviderName),
		zap.String("model", record.ModelUsed),
		zap.Int("total_tokens", record.TotalTokens),
		zap.Float64("total_cost", record.TotalCost))

	return record
}
