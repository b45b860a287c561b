package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yamanotatsu/task-master-api/config"
	"github.com/yamanotatsu/task-master-api/models"
	"github.com/yamanotatsu/task-master-api/services/pricing"
	"go.uber.org/zap"
)

// memorySink collects appended records for assertions
type memorySink struct {
	mu      sync.Mutex
	records []*models.UsageRecord
	err     error
}

func (s *memorySink) Append(_ context.Context, record *models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

func (s *memorySink) all() []*models.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.UsageRecord(nil), s.records...)
}

// panicSink always panics, to exercise the recorder's safety net
type panicSink struct{}

func (panicSink) Append(context.Context, *models.UsageRecord) error {
	panic("sink exploded")
}

func testTable() *pricing.Table {
	return pricing.NewTable(config.ModelCatalog{
		"anthropic": {
			{ID: "claude-3-7-sonnet-20250219", InputCostPer1M: 3, OutputCostPer1M: 15, Currency: "USD"},
		},
	})
}

func TestRecorder_Record(t *testing.T) {
	sink := &memorySink{}
	recorder := NewRecorder(testTable(), sink, zap.NewNop())

	record := recorder.Record(context.Background(), Input{
		UserID:       "user-1",
		CommandName:  "expand-task",
		ProviderName: "anthropic",
		ModelID:      "claude-3-7-sonnet-20250219",
		InputTokens:  1_000_000,
		OutputTokens: 500_000,
		OutputType:   "cli",
	})

	require.NotNil(t, record)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, "expand-task", record.CommandName)
	assert.Equal(t, 1_500_000, record.TotalTokens)
	assert.Equal(t, 10.5, record.TotalCost)
	assert.Equal(t, "USD", record.Currency)
	assert.False(t, record.Timestamp.IsZero())
	require.Len(t, sink.all(), 1)
}

func TestRecorder_UnknownModelCostsZero(t *testing.T) {
	sink := &memorySink{}
	recorder := NewRecorder(testTable(), sink, zap.NewNop())

	record := recorder.Record(context.Background(), Input{
		ProviderName: "mystery",
		ModelID:      "model-x",
		InputTokens:  100,
		OutputTokens: 100,
	})

	require.NotNil(t, record)
	assert.Zero(t, record.TotalCost)
	assert.Equal(t, "USD", record.Currency)
}

func TestRecorder_SinkFailureIsSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("database down")}
	recorder := NewRecorder(testTable(), sink, zap.NewNop())

	record := recorder.Record(context.Background(), Input{
		ProviderName: "anthropic",
		ModelID:      "claude-3-7-sonnet-20250219",
		InputTokens:  10,
		OutputTokens: 10,
	})

	// Persistence failed but the record is still produced
	require.NotNil(t, record)
}

func TestRecorder_PanicIsContained(t *testing.T) {
	recorder := NewRecorder(testTable(), panicSink{}, zap.NewNop())

	var record *models.UsageRecord
	require.NotPanics(t, func() {
		record = recorder.Record(context.Background(), Input{
			ProviderName: "anthropic",
			ModelID:      "claude-3-7-sonnet-20250219",
		})
	})
	assert.Nil(t, record)
}

func TestAsyncSink(t *testing.T) {
	underlying := &memorySink{}
	sink := NewAsyncSink(underlying, zap.NewNop(), AsyncConfig{BufferSize: 10, WorkerCount: 2})

	t.Run("append before start fails", func(t *testing.T) {
		err := sink.Append(context.Background(), models.NewUsageRecord("u", "c"))
		assert.Error(t, err)
	})

	require.NoError(t, sink.Start())

	t.Run("cannot start twice", func(t *testing.T) {
		assert.Error(t, sink.Start())
	})

	t.Run("records flush to underlying sink", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, sink.Append(context.Background(), models.NewUsageRecord("u", "c")))
		}

		require.Eventually(t, func() bool {
			return len(underlying.all()) == 5
		}, time.Second, 10*time.Millisecond)
	})

	require.NoError(t, sink.Stop(time.Second))
}
