package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/middleware"
	"github.com/yamanotatsu/task-master-api/repositories"
	"github.com/yamanotatsu/task-master-api/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// UsageHandler serves AI usage records for the authenticated user
type UsageHandler struct {
	repo   repositories.UsageRepository
	logger *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(repo repositories.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/usage
func (h *UsageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == "" {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, err := h.repo.GetByUserID(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list usage records",
			zap.String("user_id", userID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, records)
}

// HandleGet handles GET /api/v1/usage/{id}
func (h *UsageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == "" {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid usage record ID", nil)
		return
	}

	record, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = utils.WriteNotFound(w, "Usage record not found")
			return
		}
		h.logger.Error("failed to load usage record",
			zap.String("id", id.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}
	// Records are user-scoped; a miss and another user's record look the same.
	if record.UserID != userID {
		_ = utils.WriteNotFound(w, "Usage record not found")
		return
	}

	_ = utils.WriteOK(w, record)
}

// usageSummaryResponse is the response body for the cost summary endpoint
type usageSummaryResponse struct {
	UserID    string    `json:"user_id"`
	TotalCost float64   `json:"total_cost"`
	Currency  string    `json:"currency"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// HandleSummary handles GET /api/v1/usage/summary.
// Accepts optional RFC3339 "start"/"end" query params, defaulting to the
// last 30 days.
func (h *UsageHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserIDFromContext(r.Context())
	if userID == "" {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)
	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			_ = utils.WriteBadRequest(w, "start must be an RFC3339 timestamp", nil)
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			_ = utils.WriteBadRequest(w, "end must be an RFC3339 timestamp", nil)
			return
		}
	}
	if end.Before(start) {
		_ = utils.WriteBadRequest(w, "end must be after start", nil)
		return
	}

	total, err := h.repo.TotalCostByUser(r.Context(), userID, start, end)
	if err != nil {
		h.logger.Error("failed to compute usage summary",
			zap.String("user_id", userID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, usageSummaryResponse{
		UserID:    userID,
		TotalCost: total,
		Currency:  "USD",
		Start:     start,
		End:       end,
	})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
