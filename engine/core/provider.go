package core

// ProviderName identifies a supported model provider.
type ProviderName string

const (
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderGoogle    ProviderName = "google"
	ProviderOllama    ProviderName = "ollama"
	ProviderGroq      ProviderName = "groq"
	ProviderMock      ProviderName = "mock"
)

// ProviderConfig carries provider-specific model settings.
type ProviderConfig struct {
	Provider ProviderName `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string       `json:"model"    yaml:"model"    mapstructure:"model"`
	APIKey   string       `json:"api_key"  yaml:"api_key"  mapstructure:"api_key"`
	APIURL   string       `json:"api_url"  yaml:"api_url"  mapstructure:"api_url"`
}

// NewProviderConfig creates a ProviderConfig for the given provider and model.
func NewProviderConfig(provider ProviderName, model string, apiKey string) *ProviderConfig {
	return &ProviderConfig{
		Provider: provider,
		Model:    model,
		APIKey:   apiKey,
	}
}
