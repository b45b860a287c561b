package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

type fakeChecker struct {
	err error
}

func (f *fakeChecker) HealthCheck(context.Context) error { return f.err }

type noopAdapter struct{ name string }

func (a *noopAdapter) Name() string { return a.name }
func (a *noopAdapter) GenerateText(context.Context, *providers.CallParams) (*providers.Response, error) {
	return nil, nil
}
func (a *noopAdapter) StreamText(context.Context, *providers.CallParams) (*providers.Response, error) {
	return nil, nil
}
func (a *noopAdapter) GenerateObject(context.Context, *providers.CallParams) (*providers.Response, error) {
	return nil, nil
}

func registryWith(t *testing.T, names ...string) *providers.Registry {
	t.Helper()
	r := providers.NewRegistry()
	for _, name := range names {
		require.NoError(t, r.Register(&noopAdapter{name: name}))
	}
	return r
}

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(nil, registryWith(t), zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestHealthHandler_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		db         DatabaseChecker
		registry   *providers.Registry
		wantStatus int
	}{
		{
			name:       "all healthy",
			db:         &fakeChecker{},
			registry:   registryWith(t, "openai"),
			wantStatus: http.StatusOK,
		},
		{
			name:       "database disabled",
			db:         nil,
			registry:   registryWith(t, "openai"),
			wantStatus: http.StatusOK,
		},
		{
			name:       "database down",
			db:         &fakeChecker{err: errors.New("connection refused")},
			registry:   registryWith(t, "openai"),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "no providers",
			db:         &fakeChecker{},
			registry:   registryWith(t),
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.registry, zap.NewNop())
			rec := httptest.NewRecorder()

			h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
