package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var (
	// ErrUnknownProvider is returned when no environment variable is mapped
	// for a provider name. This indicates a broken role->provider binding
	// upstream, not a missing credential.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrKeyNotFound is returned when a required API key cannot be resolved
	// from any source.
	ErrKeyNotFound = errors.New("API key not found")
)

// envVarByProvider maps a lowercase provider name to its credential variable
var envVarByProvider = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
	"ollama":     "OLLAMA_API_KEY", // optional, local provider works without it
}

// keyOptionalProviders lists providers that work without a credential
var keyOptionalProviders = map[string]bool{
	"ollama": true,
}

// Session carries per-request environment overrides, typically supplied by
// an MCP-style caller. It takes precedence over the process environment.
type Session struct {
	Env map[string]string
}

// Resolver resolves provider credentials through the
// session -> environment -> project .env chain.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a new key resolver
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve returns the API key for a provider, or "" for the key-optional
// local provider when unset. A missing key for any other provider is a
// configuration error.
func (r *Resolver) Resolve(providerName string, session *Session, projectRoot string) (string, error) {
	envVar, ok := envVarByProvider[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	key := r.lookup(envVar, session, projectRoot)
	if key != "" {
		return key, nil
	}

	if keyOptionalProviders[providerName] {
		return "", nil
	}

	return "", fmt.Errorf("%w: set %s for provider %s", ErrKeyNotFound, envVar, providerName)
}

// IsSet reports whether a usable key exists for the provider. Key-optional
// providers always report true.
func (r *Resolver) IsSet(providerName string, session *Session, projectRoot string) bool {
	if keyOptionalProviders[providerName] {
		return true
	}

	envVar, ok := envVarByProvider[providerName]
	if !ok {
		return false
	}

	return r.lookup(envVar, session, projectRoot) != ""
}

// lookup walks the resolution chain: session override, process environment,
// then the project root .env file.
func (r *Resolver) lookup(envVar string, session *Session, projectRoot string) string {
	if session != nil {
		if v, ok := session.Env[envVar]; ok && v != "" {
			return v
		}
	}

	if v := os.Getenv(envVar); v != "" {
		return v
	}

	if projectRoot != "" {
		envPath := filepath.Join(projectRoot, ".env")
		values, err := godotenv.Read(envPath)
		if err != nil {
			if !os.IsNotExist(err) {
				r.logger.Debug("failed to read project .env",
					zap.String("path", envPath),
					zap.Error(err))
			}
			return ""
		}
		if v := values[envVar]; v != "" {
			return v
		}
	}

	return ""
}
