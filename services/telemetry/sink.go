package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yamanotatsu/task-master-api/models"
	"go.uber.org/zap"
)

// Sink receives completed usage records. Implementations must be safe for
// concurrent use; ordering between records from different calls is not
// guaranteed.
type Sink interface {
	Append(ctx context.Context, record *models.UsageRecord) error
}

// LogSink writes usage records to the structured log. This is the minimal
// console sink used when no database is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that emits records as log lines
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Append implements Sink
func (s *LogSink) Append(_ context.Context, record *models.UsageRecord) error {
	s.logger.Info("ai usage",
		zap.String("id", record.ID.String()),
		zap.Time("timestamp", record.Timestamp),
		zap.String("user_id", record.UserID),
		zap.String("command", record.CommandName),
		zap.String("provider", record.ProviderName),
		zap.String("model", record.ModelUsed),
		zap.Int("input_tokens", record.InputTokens),
		zap.Int("output_tokens", record.OutputTokens),
		zap.Int("total_tokens", record.TotalTokens),
		zap.Float64("total_cost", record.TotalCost),
		zap.String("currency", record.Currency),
		zap.String("output_type", record.OutputType))
	return nil
}

// AsyncSink buffers records on a channel and flushes them to an underlying
// sink from background workers, so slow persistence never delays AI calls.
type AsyncSink struct {
	underlying  Sink
	logger      *zap.Logger
	recordChan  chan *models.UsageRecord
	workerCount int
	wg          sync.WaitGroup
	mu          sync.Mutex
	started     bool
}

// AsyncConfig holds configuration for the AsyncSink
type AsyncConfig struct {
	BufferSize  int // Size of the record buffer channel
	WorkerCount int // Number of concurrent flush workers
}

// DefaultAsyncConfig returns the default configuration
func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAsyncSink creates a new AsyncSink in front of an underlying sink
func NewAsyncSink(underlying Sink, logger *zap.Logger, config AsyncConfig) *AsyncSink {
	return &AsyncSink{
		underlying:  underlying,
		logger:      logger,
		recordChan:  make(chan *models.UsageRecord, config.BufferSize),
		workerCount: config.WorkerCount,
	}
}

// Start starts the background flush workers
func (s *AsyncSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("async sink already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started telemetry sink",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", cap(s.recordChan)))

	return nil
}

// Stop closes the buffer and waits for pending records to flush, up to timeout
func (s *AsyncSink) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("async sink not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping telemetry sink", zap.Int("pending_records", len(s.recordChan)))

	close(s.recordChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("telemetry sink stop timeout after %v", timeout)
	}
}

// Append implements Sink. It never blocks: when the buffer is full the
// record is dropped with a warning.
func (s *AsyncSink) Append(_ context.Context, record *models.UsageRecord) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("async sink not started")
	}
	s.mu.Unlock()

	select {
	case s.recordChan <- record:
		return nil
	default:
		s.logger.Warn("telemetry buffer full, dropping record",
			zap.String("provider", record.ProviderName),
			zap.String("model", record.ModelUsed))
		return fmt.Errorf("telemetry buffer full")
	}
}

// worker flushes records from the channel to the underlying sink
func (s *AsyncSink) worker(id int) {
	defer s.wg.Done()

	for record := range s.recordChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.underlying.Append(ctx, record); err != nil {
			s.logger.Error("failed to flush usage record",
				zap.Int("worker_id", id),
				zap.String("id", record.ID.String()),
				zap.Error(err))
		}
		cancel()
	}
}
