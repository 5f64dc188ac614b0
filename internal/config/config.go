package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/matcher"
	"github.com/femibol/propel-command-center/internal/schedule"
)

const (
	defaultListenAddr                 = ":3001"
	defaultMondayAPIURL               = "https://api.monday.com/v2"
	defaultMondayAPIVersion           = "2024-10"
	defaultCatalogTTLSeconds          = 120
	defaultLLMBatchSize               = 20
	defaultLLMMaxTasks                = 30
	defaultLLMTimeoutSeconds          = 60
	defaultExternalHTTPTimeoutSeconds = 90
	defaultProximityWindowMinutes     = 15
	defaultProximityDominance         = 0.6
	defaultProximityMinMinutes        = 5
	defaultProximityNoiseMinutes      = 3
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:4173"}

// Board is one project board whose subitems feed the task catalog.
type Board struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	ShortName string `yaml:"short_name"`
}

type Config struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`

	TimelyDBPath    string `yaml:"timely_db_path"`
	URLMappingsPath string `yaml:"url_mappings_path"`

	Boards                 []Board `yaml:"boards"`
	MondayAPIToken         string  `yaml:"monday_api_token"`
	MondayAPIURL           string  `yaml:"monday_api_url"`
	MondayAPIVersion       string  `yaml:"monday_api_version"`
	RedisURL               string  `yaml:"redis_url"`
	CatalogTTLSeconds      int     `yaml:"catalog_ttl_seconds"`
	CatalogRefreshSchedule string  `yaml:"catalog_refresh_schedule"`

	LLMProvider       string `yaml:"llm_provider"`
	LLMModel          string `yaml:"llm_model"`
	LLMBatchSize      int    `yaml:"llm_batch_size"`
	LLMMaxTasks       int    `yaml:"llm_max_tasks"`
	LLMTimeoutSeconds int    `yaml:"llm_timeout_seconds"`
	AnthropicAPIKey   string `yaml:"anthropic_api_key"`
	OpenAIAPIKey      string `yaml:"openai_api_key"`

	ProximityWindowMinutes int     `yaml:"proximity_window_minutes"`
	ProximityDominance     float64 `yaml:"proximity_dominance"`
	ProximityMinMinutes    float64 `yaml:"proximity_min_minutes"`
	// Negative disables the noise filter.
	ProximityNoiseMinutes float64 `yaml:"proximity_noise_minutes"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	DigestChannelID string `yaml:"digest_channel_id"`
	DigestSchedule  string `yaml:"digest_schedule"`

	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`
	LogLevel                   string `yaml:"log_level"`
	LogFile                    string `yaml:"log_file"`

	Location *time.Location `yaml:"-"` // computed from Timezone
}

// Load reads config.yaml (or $CONFIG_PATH), applies env overrides, fills
// missing secrets from the OS keyring, applies defaults and validates.
func Load() (Config, error) {
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	return LoadFile(configPath)
}

// LoadFile is Load with an explicit path. A missing file is not an error.
func LoadFile(configPath string) (Config, error) {
	var cfg Config
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", configPath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", configPath, err)
	}

	var errs []error
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverrideList(&cfg.CORSOrigins, "CORS_ORIGINS")
	envOverride(&cfg.TimelyDBPath, "TIMELY_DB_PATH")
	envOverride(&cfg.URLMappingsPath, "URL_MAPPINGS_PATH")
	envOverride(&cfg.MondayAPIToken, "MONDAY_API_TOKEN")
	envOverride(&cfg.MondayAPIURL, "MONDAY_API_URL")
	envOverride(&cfg.MondayAPIVersion, "MONDAY_API_VERSION")
	envOverride(&cfg.RedisURL, "REDIS_URL")
	errs = append(errs, envOverrideInt(&cfg.CatalogTTLSeconds, "CATALOG_TTL_SECONDS"))
	envOverride(&cfg.CatalogRefreshSchedule, "CATALOG_REFRESH_SCHEDULE")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	errs = append(errs, envOverrideInt(&cfg.LLMBatchSize, "LLM_BATCH_SIZE"))
	errs = append(errs, envOverrideInt(&cfg.LLMMaxTasks, "LLM_MAX_TASKS"))
	errs = append(errs, envOverrideInt(&cfg.LLMTimeoutSeconds, "LLM_TIMEOUT_SECONDS"))
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	errs = append(errs, envOverrideInt(&cfg.ProximityWindowMinutes, "PROXIMITY_WINDOW_MINUTES"))
	errs = append(errs, envOverrideFloat(&cfg.ProximityDominance, "PROXIMITY_DOMINANCE"))
	errs = append(errs, envOverrideFloat(&cfg.ProximityMinMinutes, "PROXIMITY_MIN_MINUTES"))
	errs = append(errs, envOverrideFloat(&cfg.ProximityNoiseMinutes, "PROXIMITY_NOISE_MINUTES"))
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.DigestChannelID, "DIGEST_CHANNEL_ID")
	envOverride(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	errs = append(errs, envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"))
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFile, "LOG_FILE")
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	cfg.fillSecretsFromKeyring()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = append([]string(nil), defaultCORSOrigins...)
	}
	if c.TimelyDBPath == "" {
		c.TimelyDBPath = filepath.Join(os.Getenv("LOCALAPPDATA"), "TimelyApp", "Memory", "data", "db.sqlite")
	}
	if c.MondayAPIURL == "" {
		c.MondayAPIURL = defaultMondayAPIURL
	}
	if c.MondayAPIVersion == "" {
		c.MondayAPIVersion = defaultMondayAPIVersion
	}
	if c.CatalogTTLSeconds == 0 {
		c.CatalogTTLSeconds = defaultCatalogTTLSeconds
	}
	if c.LLMProvider == "" {
		c.LLMProvider = "none"
		if c.AnthropicAPIKey != "" {
			c.LLMProvider = "anthropic"
		}
	}
	if c.LLMBatchSize == 0 {
		c.LLMBatchSize = defaultLLMBatchSize
	}
	if c.LLMMaxTasks == 0 {
		c.LLMMaxTasks = defaultLLMMaxTasks
	}
	if c.LLMTimeoutSeconds == 0 {
		c.LLMTimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.ProximityWindowMinutes == 0 {
		c.ProximityWindowMinutes = defaultProximityWindowMinutes
	}
	if c.ProximityDominance == 0 {
		c.ProximityDominance = defaultProximityDominance
	}
	if c.ProximityMinMinutes == 0 {
		c.ProximityMinMinutes = defaultProximityMinMinutes
	}
	if c.ProximityNoiseMinutes == 0 {
		c.ProximityNoiseMinutes = defaultProximityNoiseMinutes
	}
	if c.ExternalHTTPTimeoutSeconds == 0 {
		c.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

// Validate reports the first invalid setting. It also resolves Location.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "none":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic: %w", ErrMissingSecret)
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required when llm_provider=openai: %w", ErrMissingSecret)
		}
	default:
		return fmt.Errorf("llm_provider must be 'anthropic', 'openai' or 'none', got '%s'", c.LLMProvider)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if c.LLMBatchSize < 1 {
		return fmt.Errorf("invalid llm_batch_size '%d': must be >= 1", c.LLMBatchSize)
	}
	if c.LLMMaxTasks < 1 {
		return fmt.Errorf("invalid llm_max_tasks '%d': must be >= 1", c.LLMMaxTasks)
	}
	if c.LLMTimeoutSeconds < 1 {
		return fmt.Errorf("invalid llm_timeout_seconds '%d': must be >= 1", c.LLMTimeoutSeconds)
	}
	if c.CatalogTTLSeconds < 0 {
		return fmt.Errorf("invalid catalog_ttl_seconds '%d': must be >= 0", c.CatalogTTLSeconds)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.ProximityWindowMinutes < 1 {
		return fmt.Errorf("invalid proximity_window_minutes '%d': must be >= 1", c.ProximityWindowMinutes)
	}
	if c.ProximityDominance <= 0 || c.ProximityDominance > 1 {
		return fmt.Errorf("invalid proximity_dominance '%f': must be in (0, 1]", c.ProximityDominance)
	}
	if c.ProximityMinMinutes < 0 {
		return fmt.Errorf("invalid proximity_min_minutes '%f': must be >= 0", c.ProximityMinMinutes)
	}

	for i, b := range c.Boards {
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("boards[%d]: id is required", i)
		}
		if strings.TrimSpace(b.ShortName) == "" {
			return fmt.Errorf("boards[%d] (%s): short_name is required", i, b.ID)
		}
	}

	for name, spec := range map[string]string{
		"catalog_refresh_schedule": c.CatalogRefreshSchedule,
		"digest_schedule":          c.DigestSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := schedule.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, spec, err)
		}
	}
	if c.DigestSchedule != "" {
		if c.SlackBotToken == "" {
			return fmt.Errorf("slack_bot_token is required when digest_schedule is set: %w", ErrMissingSecret)
		}
		if c.DigestChannelID == "" {
			return errors.New("digest_channel_id is required when digest_schedule is set")
		}
	}
	return nil
}

// Proximity converts the proximity settings for matcher.New.
func (c Config) Proximity() matcher.ProximityConfig {
	p := matcher.DefaultProximity()
	p.Window = time.Duration(c.ProximityWindowMinutes) * time.Minute
	p.Dominance = c.ProximityDominance
	p.MinMinutes = c.ProximityMinMinutes
	p.NoiseMaxMinutes = c.ProximityNoiseMinutes
	if p.NoiseMaxMinutes < 0 {
		p.NoiseMaxMinutes = 0
	}
	return p
}

func (c Config) LLMEnabled() bool {
	return c.LLMProvider == "anthropic" || c.LLMProvider == "openai"
}

func (c Config) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLSeconds) * time.Second
}

type mappingFile struct {
	Patterns []domain.DomainMapping `yaml:"patterns"`
}

// LoadDomainMappings reads the URL-to-client table. A missing file or an
// empty path yields an empty table.
func LoadDomainMappings(path string) ([]domain.DomainMapping, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read url mappings: %w", err)
	}
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse url mappings: %w", err)
	}
	out := make([]domain.DomainMapping, 0, len(f.Patterns))
	for i, m := range f.Patterns {
		if strings.TrimSpace(m.Domain) == "" {
			return nil, fmt.Errorf("url mappings: patterns[%d] has no domain", i)
		}
		out = append(out, m)
	}
	return out, nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			*field = append(*field, item)
		}
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
