package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/mm1618bu/laborflow/pkg/configstore"
	"github.com/mm1618bu/laborflow/pkg/core/model"
)

const configFileName = "laborflow.yaml"

// ErrNotFound is returned by Load and LoadWithEnv when no config file exists
var ErrNotFound = errors.New("config file not found")

// DatabaseConfig selects the store. An empty URL runs on the in-memory store.
type DatabaseConfig struct {
	URL string `yaml:"url,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" validate:"min=0"`
}

// LockingConfig selects the per-offer lock. The redis backend needs redis.addr.
type LockingConfig struct {
	Backend       string        `yaml:"backend" validate:"required,oneof=local redis"`
	Timeout       time.Duration `yaml:"timeout,omitempty" validate:"min=0"`
	TTL           time.Duration `yaml:"ttl,omitempty" validate:"min=0"`
	RetryInterval time.Duration `yaml:"retryInterval,omitempty" validate:"min=0"`
	MaxAttempts   int           `yaml:"maxAttempts,omitempty" validate:"min=0"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// NotificationsConfig selects where decision events go
type NotificationsConfig struct {
	Backend  string `yaml:"backend" validate:"required,oneof=none log sns"`
	Region   string `yaml:"region,omitempty" validate:"required_if=Backend sns"`
	TopicARN string `yaml:"topicARN,omitempty" validate:"required_if=Backend sns"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AttributesConfig controls the employee attribute cache; zero TTL disables it
type AttributesConfig struct {
	CacheTTL time.Duration `yaml:"cacheTTL,omitempty" validate:"min=0"`
}

// Config represents the application configuration
type Config struct {
	Database       DatabaseConfig               `yaml:"database"`
	Redis          RedisConfig                  `yaml:"redis"`
	Locking        LockingConfig                `yaml:"locking"`
	HTTP           HTTPConfig                   `yaml:"http"`
	Notifications  NotificationsConfig          `yaml:"notifications"`
	Metrics        MetricsConfig                `yaml:"metrics"`
	Attributes     AttributesConfig             `yaml:"attributes"`
	Workflow       configstore.Patch            `yaml:"workflow"`
	Organizations  map[string]configstore.Patch `yaml:"organizations,omitempty"`
	OfferOverrides []configstore.OfferOverride  `yaml:"offerOverrides,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns a config that runs everything in-process
func Default() *Config {
	return &Config{
		Locking:       LockingConfig{Backend: "local", Timeout: 10 * time.Second},
		HTTP:          HTTPConfig{Addr: ":8080"},
		Notifications: NotificationsConfig{Backend: "log"},
		Metrics:       MetricsConfig{Enabled: true},
	}
}

// Load loads and validates the configuration from laborflow.yaml
// It looks for the config file in the current directory first, then in the user's home directory
func Load() (*Config, error) {
	return LoadWithEnv("")
}

// LoadWithEnv loads laborflow.<env>.yaml, falling back to laborflow.yaml
func LoadWithEnv(env string) (*Config, error) {
	var names []string
	if env != "" {
		names = append(names, fmt.Sprintf("laborflow.%s.yaml", env))
	}
	names = append(names, configFileName)

	configPath, err := findConfigFile(names...)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
// Fields absent from the file keep their Default values.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration struct, checks rrule syntax and checks that
// every workflow layer merges into a valid workflow config
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Locking.Backend == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("config validation failed: locking.backend redis requires redis.addr")
	}

	for i, override := range cfg.OfferOverrides {
		if _, err := rrule.StrToRRule(override.RRule); err != nil {
			return fmt.Errorf("invalid rrule in offerOverrides[%d]: %w", i, err)
		}
	}

	defaults := cfg.WorkflowDefaults()
	if err := defaults.Validate(); err != nil {
		return fmt.Errorf("invalid workflow defaults: %w", err)
	}
	for id, org := range cfg.Organizations {
		if err := org.Apply(defaults).Validate(); err != nil {
			return fmt.Errorf("invalid workflow config for organization %s: %w", id, err)
		}
	}

	return nil
}

// WorkflowDefaults returns the built-in workflow config with the workflow section applied
func (c *Config) WorkflowDefaults() model.WorkflowConfig {
	return c.Workflow.Apply(model.DefaultWorkflowConfig())
}

// findConfigFile searches for the first of names in the current directory, then in the
// home directory
func findConfigFile(names ...string) (string, error) {
	for _, name := range names {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	for _, name := range names {
		homeConfigPath := filepath.Join(homeDir, name)
		if _, err := os.Stat(homeConfigPath); err == nil {
			return homeConfigPath, nil
		}
	}

	return "", fmt.Errorf("%w in current directory or home directory", ErrNotFound)
}
