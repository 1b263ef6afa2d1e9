package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// envAliases maps the canonical environment names the platform documents to
// their koanf paths. Tagged env vars on the Config structs work too; aliases
// take precedence when both are set.
var envAliases = map[string]string{
	"DATABASE_URL":      "database.conn_string",
	"OPENAI_API_KEY":    "llm.api_key",
	"ANTHROPIC_API_KEY": "llm.api_key",
	"GOOGLE_API_KEY":    "llm.api_key",
	"BASE_PORT":         "backends.base_port",
	"MAX_BACKENDS":      "backends.max",
	"WORKSPACE_BASE":    "workspace.base_dir",
}

// Service loads and hands out the process configuration.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
}

// Source supplies one layer of configuration values.
type Source interface {
	Load() (map[string]any, error)
	Type() string
}

type loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
}

// NewService creates a new configuration service with validation support.
func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
}

// Load applies defaults, then the given sources in order, then environment
// variables; the last layer wins.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	for _, source := range sources {
		if source == nil {
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	return l.unmarshalAndValidate()
}

func (l *loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	return nil
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := l.koanf.Load(&mapProvider{data: data}, nil); err != nil {
		return fmt.Errorf("failed to merge source %s: %w", source.Type(), err)
	}
	return nil
}

func (l *loader) loadEnvironment() error {
	envToPath := generateEnvMappings()
	for alias, path := range envAliases {
		envToPath[alias] = path
	}
	return l.koanf.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key string, value string) (string, any) {
			if configPath, exists := envToPath[key]; exists {
				return configPath, value
			}
			// Unmapped env vars stay out of the tree.
			return "", nil
		},
	}), nil)
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	config := &Config{}
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           config,
		TagName:          "koanf",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			sensitiveStringDecodeHook,
		),
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(l.koanf.Raw()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := l.validator.Struct(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// sensitiveStringDecodeHook converts plain strings to SensitiveString fields.
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

// generateEnvMappings walks the Config struct tags and returns env → path.
func generateEnvMappings() map[string]string {
	mappings := make(map[string]string)
	walkEnvTags(reflect.TypeOf(Config{}), "", mappings)
	return mappings
}

func walkEnvTags(t reflect.Type, prefix string, out map[string]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		koanfTag := field.Tag.Get("koanf")
		if koanfTag == "" || koanfTag == "-" {
			continue
		}
		path := koanfTag
		if prefix != "" {
			path = prefix + "." + koanfTag
		}
		if envTag := field.Tag.Get("env"); envTag != "" {
			out[envTag] = path
		}
		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			walkEnvTags(ft, path, out)
		}
	}
}

// mapProvider adapts an already-parsed map to the koanf Provider interface.
type mapProvider struct {
	data map[string]any
}

func (m *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("map provider does not support raw bytes")
}

func (m *mapProvider) Read() (map[string]any, error) {
	return m.data, nil
}

// NewYAMLSource reads one YAML file as a configuration layer. A missing file
// is not an error so a bare environment still boots.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

type yamlSource struct {
	path string
}

func (y *yamlSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", y.path, err)
	}
	config := make(map[string]any)
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", y.path, err)
	}
	return config, nil
}

func (y *yamlSource) Type() string {
	return "yaml:" + strings.TrimSpace(y.path)
}
