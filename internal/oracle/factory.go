package oracle

import (
	"fmt"
	"log/slog"

	"github.com/teemow/tailortalk/internal/instrumentation"
)

// Providers.
const (
	ProviderOpenAI = "openai"
	ProviderRules  = "rules"
)

// Config selects a classifier.
type Config struct {
	Provider string
	OpenAI   OpenAIConfig
}

// New builds the configured classifier wrapped with instrumentation. An
// OpenAI provider without an API key falls back to the rule classifier.
func New(cfg Config, metrics *instrumentation.Metrics, logger *slog.Logger) (Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.OpenAI.APIKey == "" {
			logger.Warn("no OpenAI API key configured, using rule based classifier")
			return NewInstrumented(NewRules(), instrumentation.ProviderRules, metrics), nil
		}
		c, err := NewOpenAI(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		return NewInstrumented(c, instrumentation.ProviderOpenAI, metrics), nil
	case ProviderRules:
		return NewInstrumented(NewRules(), instrumentation.ProviderRules, metrics), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
