// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Workers  int     `yaml:"workers"`   // update handling goroutines
	OwnerIDs []int64 `yaml:"owner_ids"` // only these users may talk to the bot
	// RateLimit is the number of commands a user may send per RateWindow.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
	Locale     string        `yaml:"locale"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // lifetime of status indicator records
}

type LLMConfig struct {
	Provider        string        `yaml:"provider"` // completion | openai | gemini
	APIKey          string        `yaml:"api_key"`
	EndpointURL     string        `yaml:"endpoint_url"`
	BaseURL         string        `yaml:"base_url"` // SDK providers only
	Model           string        `yaml:"model"`
	MaxTokens       int           `yaml:"max_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
	ConcurrentLimit int           `yaml:"concurrent_limit"` // max concurrent LLM calls per worker process
}

type TDLConfig struct {
	Bin           string        `yaml:"bin"`
	ConfigDir     string        `yaml:"config_dir"`
	OutputDirBase string        `yaml:"output_dir_base"`
	Timeout       time.Duration `yaml:"timeout"`
}

type WorkerConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type SchedulerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	ErrorBackoff time.Duration `yaml:"error_backoff"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	LLM       LLMConfig       `yaml:"llm"`
	TDL       TDLConfig       `yaml:"tdl"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

const (
	DefaultLLMEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultLLMModel    = "gpt-3.5-turbo"
)

// LoadConfig reads the YAML file at path (optional when empty), applies env overrides and defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setStr := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setStr(&cfg.Database.URL, "DATABASE_URL")
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Bot.Token, "TELEGRAM_BOT_TOKEN")
	setStr(&cfg.LLM.APIKey, "LLM_API_KEY")
	setStr(&cfg.LLM.EndpointURL, "LLM_ENDPOINT_URL")
	setStr(&cfg.LLM.Model, "LLM_MODEL_NAME")
	setStr(&cfg.TDL.ConfigDir, "TDL_CONFIG_DIR")
	setStr(&cfg.TDL.OutputDirBase, "TDL_OUTPUT_DIR_BASE")
	setStr(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")

	if v := strings.TrimSpace(os.Getenv("OWNER_IDS")); v != "" {
		ids, err := parseIDs(v)
		if err != nil {
			return fmt.Errorf("OWNER_IDS: %w", err)
		}
		cfg.Bot.OwnerIDs = ids
	}
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 4
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Bot.Locale == "" {
		cfg.Bot.Locale = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port <= 0 {
		cfg.Admin.Port = 9090
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "completion"
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.EndpointURL == "" {
		cfg.LLM.EndpointURL = DefaultLLMEndpoint
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.ConcurrentLimit <= 0 {
		cfg.LLM.ConcurrentLimit = 4
	}

	if cfg.TDL.Bin == "" {
		cfg.TDL.Bin = "tdl"
	}
	if cfg.TDL.OutputDirBase == "" {
		cfg.TDL.OutputDirBase = "./tdl_output"
	}
	if cfg.TDL.Timeout <= 0 {
		cfg.TDL.Timeout = 300 * time.Second
	}

	if cfg.Worker.Workers <= 0 {
		cfg.Worker.Workers = 2
	}
	if cfg.Worker.QueueSize <= 0 {
		cfg.Worker.QueueSize = cfg.Worker.Workers
	}
	if cfg.Worker.PollInterval <= 0 {
		cfg.Worker.PollInterval = time.Second
	}

	if cfg.Scheduler.Interval <= 0 {
		cfg.Scheduler.Interval = time.Hour
	}
	if cfg.Scheduler.ErrorBackoff <= 0 {
		cfg.Scheduler.ErrorBackoff = 60 * time.Second
	}
	if cfg.Scheduler.LockTTL <= 0 {
		cfg.Scheduler.LockTTL = 10 * time.Minute
	}
}

// Validate checks the settings a given process needs; each subcommand asks only for its own.
func (c *Config) Validate(needs ...string) error {
	var errs []error
	for _, n := range needs {
		switch n {
		case "database":
			if c.Database.URL == "" {
				errs = append(errs, errors.New("database.url is required"))
			}
		case "redis":
			if c.Redis.URL == "" {
				errs = append(errs, errors.New("redis.url is required"))
			}
		case "bot":
			if c.Bot.Token == "" {
				errs = append(errs, errors.New("bot.token is required"))
			}
			if len(c.Bot.OwnerIDs) == 0 {
				errs = append(errs, errors.New("bot.owner_ids must list at least one user"))
			}
		case "llm":
			switch c.LLM.Provider {
			case "completion", "openai", "gemini":
			default:
				errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
			}
			if c.LLM.APIKey == "" {
				errs = append(errs, errors.New("llm.api_key is required"))
			}
		case "tdl":
			if c.TDL.ConfigDir == "" {
				errs = append(errs, errors.New("tdl.config_dir is required"))
			}
		}
	}
	return errors.Join(errs...)
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
