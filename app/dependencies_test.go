package app

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/config"
	"github.com/yamanotatsu/task-master-api/models"
)

type memoryRepo struct {
	inserted []*models.UsageRecord
}

func (m *memoryRepo) Insert(_ context.Context, record *models.UsageRecord) error {
	m.inserted = append(m.inserted, record)
	return nil
}

func (m *memoryRepo) GetByID(context.Context, uuid.UUID) (*models.UsageRecord, error) {
	return nil, nil
}

func (m *memoryRepo) GetByUserID(context.Context, string, int, int) ([]*models.UsageRecord, error) {
	return nil, nil
}

func (m *memoryRepo) GetByDateRange(context.Context, time.Time, time.Time, int, int) ([]*models.UsageRecord, error) {
	return nil, nil
}

func (m *memoryRepo) TotalCostByUser(context.Context, string, time.Time, time.Time) (float64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		AI: config.AIConfig{
			Roles: map[string]config.RoleSettings{
				"main": {Provider: "anthropic", ModelID: "claude-3-7-sonnet-20250219"},
			},
			Catalog: config.DefaultModelCatalog(),
		},
	}
}

func TestRepoSink_Append(t *testing.T) {
	repo := &memoryRepo{}
	sink := &repoSink{repo: repo}

	record := &models.UsageRecord{ID: uuid.New(), UserID: "user-1"}
	require.NoError(t, sink.Append(context.Background(), record))

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, record, repo.inserted[0])
}

func TestInitAI_RegistersAllAdapters(t *testing.T) {
	deps := &Dependencies{
		Config:    testConfig(),
		Logger:    zap.NewNop(),
		UsageRepo: &memoryRepo{},
	}
	require.NoError(t, deps.initTelemetry(deps.Config))
	defer func() { _ = deps.usageSink.Stop(time.Second) }()

	require.NoError(t, deps.initAI(deps.Config))

	names := deps.Registry.List()
	assert.ElementsMatch(t, []string{"openai", "perplexity", "anthropic", "ollama"}, names)
	assert.NotNil(t, deps.AI)
}

func TestInitHTTP_BuildsHandlers(t *testing.T) {
	deps := &Dependencies{
		Config:    testConfig(),
		Logger:    zap.NewNop(),
		UsageRepo: &memoryRepo{},
	}
	require.NoError(t, deps.initTelemetry(deps.Config))
	defer func() { _ = deps.usageSink.Stop(time.Second) }()
	require.NoError(t, deps.initAI(deps.Config))

	deps.initHTTP(deps.Config)

	assert.NotNil(t, deps.AuthMiddleware)
	assert.NotNil(t, deps.AIHandler)
	assert.NotNil(t, deps.UsageHandler)
	assert.NotNil(t, deps.HealthHandler)
}
