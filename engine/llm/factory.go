package llm

import (
	"context"
	"fmt"

	"github.com/appforge/appforge/engine/core"
)

// DefaultFactory is a default implementation of the Factory interface
type DefaultFactory struct{}

// NewDefaultFactory creates a new DefaultFactory
func NewDefaultFactory() Factory {
	return &DefaultFactory{}
}

// CreateClient creates a new Client for the given provider
func (f *DefaultFactory) CreateClient(ctx context.Context, config *core.ProviderConfig) (Client, error) {
	if config == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	switch config.Provider {
	case core.ProviderOpenAI, core.ProviderAnthropic, core.ProviderGoogle,
		core.ProviderOllama, core.ProviderGroq, core.ProviderMock:
		return NewLangChainAdapter(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}
