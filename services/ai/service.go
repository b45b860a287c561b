package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/models"
	"github.com/yamanotatsu/task-master-api/services/keys"
	"github.com/yamanotatsu/task-master-api/services/providers"
	"github.com/yamanotatsu/task-master-api/services/telemetry"
)

const (
	defaultOutputType = "cli"
	defaultObjectName = "generated_object"
)

// ErrEmptyPrompt is returned before any provider is contacted when the
// caller supplies no prompt text.
var ErrEmptyPrompt = errors.New("prompt is required and cannot be empty")

// errAllRolesFailed is the generic terminal error used when no role in the
// sequence produced a provider-specific failure message.
var errAllRolesFailed = errors.New("AI service call failed for all configured roles.")

// RoleConfig supplies the provider binding for each role. Implemented by
// config.Config.
type RoleConfig interface {
	ProviderForRole(role string) string
	ModelForRole(role string) string
	ParametersForRole(role string) (maxTokens int, temperature float64)
	BaseURLForRole(role string) string
}

// KeyResolver resolves provider credentials. Implemented by keys.Resolver.
type KeyResolver interface {
	Resolve(providerName string, session *keys.Session, projectRoot string) (string, error)
	IsSet(providerName string, session *keys.Session, projectRoot string) bool
}

// UsageRecorder emits usage telemetry. Implemented by telemetry.Recorder.
type UsageRecorder interface {
	Record(ctx context.Context, in telemetry.Input) *models.UsageRecord
}

// Request describes one AI invocation independent of the operation kind.
type Request struct {
	// Role is the starting point of the fallback sequence. Unknown values
	// degrade to the main sequence.
	Role Role

	// Prompt is the user message. Required.
	Prompt string

	// SystemPrompt, when non-empty, is prepended as a system message.
	SystemPrompt string

	// Schema and ObjectName apply to GenerateObject only.
	Schema     json.RawMessage
	ObjectName string

	// Session carries request-scoped credential overrides; may be nil.
	Session *keys.Session

	// ProjectRoot anchors the .env credential fallback; may be empty.
	ProjectRoot string

	// Telemetry attribution
	UserID      string
	CommandName string
	OutputType  string
}

// Result is the unified outcome of a successful invocation. Exactly one of
// Text, Object, or Stream is populated. Telemetry is nil when the provider
// reported no usage or recording failed.
type Result struct {
	Text   string
	Object json.RawMessage
	Stream io.ReadCloser

	Provider string
	ModelID  string
	Role     Role

	Telemetry *models.UsageRecord
}

// Service is the single entry point for AI calls. It resolves roles to
// providers, retries transient failures, falls through the role sequence,
// and records usage telemetry on success.
type Service struct {
	config   RoleConfig
	registry *providers.Registry
	keys     KeyResolver
	recorder UsageRecorder
	retry    *retryExecutor
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDebugRetries enables per-attempt logging in the retry executor.
func WithDebugRetries(enabled bool) Option {
	return func(s *Service) { s.retry.debug = enabled }
}

// NewService creates the AI invocation service.
func NewService(config RoleConfig, registry *providers.Registry, resolver KeyResolver, recorder UsageRecorder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		config:   config,
		registry: registry,
		keys:     resolver,
		recorder: recorder,
		retry:    newRetryExecutor(logger, false),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateText performs a text completion through the role fallback sequence.
func (s *Service) GenerateText(ctx context.Context, req *Request) (*Result, error) {
	return s.run(ctx, providers.ServiceGenerateText, req)
}

// StreamText starts a streaming completion. The caller owns Result.Stream
// and must close it. Streaming responses typically carry no usage data, in
// which case no telemetry record is produced.
func (s *Service) StreamText(ctx context.Context, req *Request) (*Result, error) {
	return s.run(ctx, providers.ServiceStreamText, req)
}

// GenerateObject performs a schema-constrained completion. If the selected
// model cannot do structured output at all, the whole sequence aborts
// immediately instead of burning through the remaining roles.
func (s *Service) GenerateObject(ctx context.Context, req *Request) (*Result, error) {
	return s.run(ctx, providers.ServiceGenerateObject, req)
}

func (s *Service) run(ctx context.Context, serviceType providers.ServiceType, req *Request) (*Result, error) {
	if req == nil || req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if req.OutputType == "" {
		req.OutputType = defaultOutputType
	}
	if serviceType == providers.ServiceGenerateObject && req.ObjectName == "" {
		req.ObjectName = defaultObjectName
	}

	if !req.Role.IsValid() {
		s.logger.Warn("unknown AI role, using main sequence",
			zap.String("role", string(req.Role)))
	}
	sequence := sequenceFor(req.Role)

	var lastErr error
	for _, role := range sequence {
		providerName := s.config.ProviderForRole(string(role))
		modelID := s.config.ModelForRole(string(role))
		if providerName == "" || modelID == "" {
			s.logger.Warn("role has no provider configured, skipping",
				zap.String("role", string(role)))
			continue
		}

		if !s.keys.IsSet(providerName, req.Session, req.ProjectRoot) {
			s.logger.Warn("no API key available for provider, skipping role",
				zap.String("role", string(role)),
				zap.String("provider", providerName))
			continue
		}

		adapter, err := s.registry.Get(providerName)
		if err != nil {
			s.logger.Warn("provider not registered, skipping role",
				zap.String("role", string(role)),
				zap.String("provider", providerName))
			continue
		}

		apiKey, err := s.keys.Resolve(providerName, req.Session, req.ProjectRoot)
		if err != nil {
			// The resolver raced with the IsSet check or the provider is
			// unknown to it; treat either as an unusable role.
			s.logger.Warn("API key resolution failed, skipping role",
				zap.String("role", string(role)),
				zap.String("provider", providerName),
				zap.Error(err))
			lastErr = err
			continue
		}

		maxTokens, temperature := s.config.ParametersForRole(string(role))
		params := &providers.CallParams{
			APIKey:      apiKey,
			ModelID:     modelID,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			BaseURL:     s.config.BaseURLForRole(string(role)),
			Messages:    buildMessages(req),
			Schema:      req.Schema,
			ObjectName:  req.ObjectName,
		}

		call := callFor(adapter, serviceType)
		resp, err := s.retry.do(ctx, role, providerName, modelID, func(ctx context.Context) (*providers.Response, error) {
			return call(ctx, params)
		})
		if err != nil {
			if serviceType == providers.ServiceGenerateObject && classify(err) == ErrKindCapability {
				// No other role is retried: structured output failures of
				// this kind require a configuration change, not a fallback.
				s.logger.Error("model does not support structured output",
					zap.String("role", string(role)),
					zap.String("provider", providerName),
					zap.String("model", modelID))
				return nil, &CapabilityError{
					Provider: providerName,
					ModelID:  modelID,
					Message:  cleanMessage(err),
				}
			}
			s.logger.Warn("provider call failed, falling back to next role",
				zap.String("role", string(role)),
				zap.String("provider", providerName),
				zap.String("model", modelID),
				zap.Error(err))
			lastErr = err
			continue
		}

		result := &Result{
			Text:     resp.Text,
			Object:   resp.Object,
			Stream:   resp.Stream,
			Provider: providerName,
			ModelID:  modelID,
			Role:     role,
		}
		if resp.Usage != nil {
			result.Telemetry = s.recorder.Record(ctx, telemetry.Input{
				UserID:       req.UserID,
				CommandName:  req.CommandName,
				ProviderName: providerName,
				ModelID:      modelID,
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				OutputType:   req.OutputType,
			})
		}
		return result, nil
	}

	if lastErr != nil {
		return nil, errors.New(cleanMessage(lastErr))
	}
	return nil, errAllRolesFailed
}

func buildMessages(req *Request) []providers.Message {
	messages := make([]providers.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, providers.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, providers.Message{Role: "user", Content: req.Prompt})
	return messages
}

// adapterCall is one of the three operations on a provider adapter.
type adapterCall func(ctx context.Context, params *providers.CallParams) (*providers.Response, error)

func callFor(adapter providers.Adapter, serviceType providers.ServiceType) adapterCall {
	switch serviceType {
	case providers.ServiceStreamText:
		return adapter.StreamText
	case providers.ServiceGenerateObject:
		return adapter.GenerateObject
	default:
		return adapter.GenerateText
	}
}

// CapabilityError aborts the fallback sequence for structured generation:
// the bound model cannot perform tool calling, so every subsequent attempt
// with the same configuration would fail the same way.
type CapabilityError struct {
	Provider string
	ModelID  string
	Message  string
}

func (e *CapabilityError) Error() string {
	return "model " + e.ModelID + " (" + e.Provider + ") does not support structured output: " + e.Message
}
