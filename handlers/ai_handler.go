package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/middleware"
	"github.com/yamanotatsu/task-master-api/models"
	"github.com/yamanotatsu/task-master-api/services/ai"
	"github.com/yamanotatsu/task-master-api/utils"
)

// AIService is the orchestrator surface the handler depends on
type AIService interface {
	GenerateText(ctx context.Context, req *ai.Request) (*ai.Result, error)
	StreamText(ctx context.Context, req *ai.Request) (*ai.Result, error)
	GenerateObject(ctx context.Context, req *ai.Request) (*ai.Result, error)
}

// AIHandler exposes the unified AI operations over HTTP
type AIHandler struct {
	service AIService
	logger  *zap.Logger
}

// NewAIHandler creates a new AIHandler
func NewAIHandler(service AIService, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		service: service,
		logger:  logger,
	}
}

// generateTextRequest is the request body for text and stream endpoints
type generateTextRequest struct {
	Prompt       string `json:"prompt" validate:"required"`
	SystemPrompt string `json:"system_prompt"`
	Role         string `json:"role"`
	CommandName  string `json:"command_name"`
	OutputType   string `json:"output_type"`
}

// generateObjectRequest adds the schema fields for structured generation
type generateObjectRequest struct {
	generateTextRequest
	Schema     json.RawMessage `json:"schema" validate:"required"`
	ObjectName string          `json:"object_name"`
}

// usageView is the telemetry slice of a response body
type usageView struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	Currency     string  `json:"currency"`
}

// generateResponse is the response body for non-streaming endpoints
type generateResponse struct {
	Text     string          `json:"text,omitempty"`
	Object   json.RawMessage `json:"object,omitempty"`
	Provider string          `json:"provider"`
	Model    string          `json:"model"`
	Role     string          `json:"role"`
	Usage    *usageView      `json:"usage,omitempty"`
}

// HandleGenerateText handles POST /api/v1/ai/generate-text
func (h *AIHandler) HandleGenerateText(w http.ResponseWriter, r *http.Request) {
	var body generateTextRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.service.GenerateText(r.Context(), h.buildRequest(r, &body, nil, ""))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	_ = utils.WriteOK(w, toGenerateResponse(result))
}

// HandleGenerateObject handles POST /api/v1/ai/generate-object
func (h *AIHandler) HandleGenerateObject(w http.ResponseWriter, r *http.Request) {
	var body generateObjectRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	req := h.buildRequest(r, &body.generateTextRequest, body.Schema, body.ObjectName)
	result, err := h.service.GenerateObject(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	_ = utils.WriteOK(w, toGenerateResponse(result))
}

// HandleStreamText handles POST /api/v1/ai/stream-text. The upstream provider
// stream is relayed to the client verbatim as server-sent events.
func (h *AIHandler) HandleStreamText(w http.ResponseWriter, r *http.Request) {
	var body generateTextRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	result, err := h.service.StreamText(r.Context(), h.buildRequest(r, &body, nil, ""))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer result.Stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-AI-Provider", result.Provider)
	w.Header().Set("X-AI-Model", result.ModelID)
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, readErr := result.Stream.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				h.logger.Debug("client disconnected during stream", zap.Error(writeErr))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			return
		}
	}
}

func (h *AIHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, body interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(body); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return false
	}
	if err := utils.ValidateStruct(body); err != nil {
		HandleValidationError(w, err, h.logger)
		return false
	}
	return true
}

func (h *AIHandler) buildRequest(r *http.Request, body *generateTextRequest, schema json.RawMessage, objectName string) *ai.Request {
	role := ai.Role(body.Role)
	if body.Role == "" {
		role = ai.RoleMain
	}
	outputType := body.OutputType
	if outputType == "" {
		outputType = "api"
	}
	return &ai.Request{
		Role:         role,
		Prompt:       body.Prompt,
		SystemPrompt: body.SystemPrompt,
		Schema:       schema,
		ObjectName:   objectName,
		UserID:       middleware.GetUserIDFromContext(r.Context()),
		CommandName:  body.CommandName,
		OutputType:   outputType,
	}
}

func (h *AIHandler) writeServiceError(w http.ResponseWriter, err error) {
	HandleAIError(w, err, h.logger)
}

func toGenerateResponse(result *ai.Result) generateResponse {
	resp := generateResponse{
		Text:     result.Text,
		Object:   result.Object,
		Provider: result.Provider,
		Model:    result.ModelID,
		Role:     string(result.Role),
		Usage:    toUsageView(result.Telemetry),
	}
	return resp
}

func toUsageView(record *models.UsageRecord) *usageView {
	if record == nil {
		return nil
	}
	return &usageView{
		InputTokens:  record.InputTokens,
		OutputTokens: record.OutputTokens,
		TotalTokens:  record.TotalTokens,
		TotalCost:    record.TotalCost,
		Currency:     record.Currency,
	}
}
