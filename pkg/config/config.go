package config

import (
	"time"
)

// Config represents the complete configuration for the appforge service.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Database  DatabaseConfig  `koanf:"database"  validate:"required"`
	LLM       LLMConfig       `koanf:"llm"       validate:"required"`
	Workspace WorkspaceConfig `koanf:"workspace" validate:"required"`
	Preview   PreviewConfig   `koanf:"preview"   validate:"required"`
	Backends  BackendsConfig  `koanf:"backends"  validate:"required"`
	Runtime   RuntimeConfig   `koanf:"runtime"   validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host        string        `koanf:"host"         validate:"required"        env:"SERVER_HOST"`
	Port        int           `koanf:"port"         validate:"min=1,max=65535" env:"SERVER_PORT"`
	CORSEnabled bool          `koanf:"cors_enabled"                            env:"SERVER_CORS_ENABLED"`
	CORS        CORSConfig    `koanf:"cors"`
	Timeout     time.Duration `koanf:"timeout"                                 env:"SERVER_TIMEOUT"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"   env:"SERVER_CORS_ALLOWED_ORIGINS"`
	AllowCredentials bool     `koanf:"allow_credentials" env:"SERVER_CORS_ALLOW_CREDENTIALS"`
}

// DatabaseConfig contains database connection configuration.
type DatabaseConfig struct {
	ConnString  string `koanf:"conn_string"  env:"DB_CONN_STRING"`
	AutoMigrate bool   `koanf:"auto_migrate" env:"DB_AUTO_MIGRATE"`
}

// LLMConfig selects the model provider used by the orchestrator.
type LLMConfig struct {
	Provider string          `koanf:"provider" validate:"oneof=openai anthropic google ollama groq mock" env:"LLM_PROVIDER"`
	Model    string          `koanf:"model"    validate:"required"                                        env:"LLM_MODEL"`
	APIKey   SensitiveString `koanf:"api_key"                                                            env:"LLM_API_KEY"   sensitive:"true"`
	BaseURL  string          `koanf:"base_url"                                                           env:"LLM_BASE_URL"`
}

// WorkspaceConfig controls per-project workspace materialization.
type WorkspaceConfig struct {
	BaseDir   string `koanf:"base_dir"   validate:"required" env:"WORKSPACE_BASE_DIR"`
	PythonBin string `koanf:"python_bin" validate:"required" env:"WORKSPACE_PYTHON_BIN"`
	UvBin     string `koanf:"uv_bin"     validate:"required" env:"WORKSPACE_UV_BIN"`
	SkipVenv  bool   `koanf:"skip_venv"                      env:"WORKSPACE_SKIP_VENV"`
}

// PreviewConfig controls the frontend build pipeline.
type PreviewConfig struct {
	NpmBin         string        `koanf:"npm_bin"         validate:"required" env:"PREVIEW_NPM_BIN"`
	InstallTimeout time.Duration `koanf:"install_timeout" validate:"required" env:"PREVIEW_INSTALL_TIMEOUT"`
	BuildCommand   string        `koanf:"build_command"   validate:"required" env:"PREVIEW_BUILD_COMMAND"`
	CacheSize      int           `koanf:"cache_size"      validate:"min=1"    env:"PREVIEW_CACHE_SIZE"`
}

// BackendsConfig bounds the per-project backend process pool.
type BackendsConfig struct {
	BasePort int `koanf:"base_port" validate:"min=1,max=65535" env:"BACKENDS_BASE_PORT"`
	Max      int `koanf:"max"       validate:"min=1"           env:"BACKENDS_MAX"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
	LogJSON     bool   `koanf:"log_json"                                                    env:"RUNTIME_LOG_JSON"`
}

// Default returns the built-in configuration values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8000,
			Timeout: 60 * time.Second,
		},
		Database: DatabaseConfig{
			AutoMigrate: true,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Workspace: WorkspaceConfig{
			BaseDir:   ".preview-builds",
			PythonBin: "python3",
			UvBin:     "uv",
		},
		Preview: PreviewConfig{
			NpmBin:         "npm",
			InstallTimeout: 120 * time.Second,
			BuildCommand:   "npm run build",
			CacheSize:      128,
		},
		Backends: BackendsConfig{
			BasePort: 8001,
			Max:      100,
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
		},
	}
}
