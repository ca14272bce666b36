// Package config loads techtree configuration from a YAML file, a .env
// file and TECHTREE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/techtree/internal/llm"
	"github.com/abhisek/techtree/internal/store"
	"github.com/abhisek/techtree/internal/tutor"
)

// EnvConfigFile names the config file when --config is not given.
const EnvConfigFile = "TECHTREE_CONFIG"

// Config is the full application configuration.
type Config struct {
	LLM    llm.Config   `yaml:"llm"`
	Store  StoreConfig  `yaml:"store"`
	Tutor  tutor.Config `yaml:"tutor"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig selects the database.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`
	// DSN is the sqlite path or postgres connection string. An empty
	// sqlite DSN uses store.DefaultDBPath.
	DSN string `yaml:"dsn"`
}

// ServerConfig configures `techtree serve`.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	QueueSize       int           `yaml:"queue_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
	File   string `yaml:"file"`   // log file; stderr when empty
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LLM:   llm.DefaultConfig(),
		Store: StoreConfig{Driver: store.DriverSQLite},
		Tutor: tutor.DefaultConfig(),
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			QueueSize:       16,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/techtree/config.yaml, falling back to
// ~/.config.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("find home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "techtree", "config.yaml"), nil
}

// Load reads configuration. path may be empty, in which case
// TECHTREE_CONFIG and then DefaultPath are tried; only an explicitly named
// file has to exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		explicit = false
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := cfg.readFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.LLM.Discover()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) readFile(path string, mustExist bool) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !mustExist {
			return nil
		}
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays TECHTREE_* variables and fills provider API keys from
// their conventional variables.
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("TECHTREE_PROVIDER", &c.LLM.Provider)
	setString("TECHTREE_DB_DRIVER", &c.Store.Driver)
	setString("TECHTREE_DB_DSN", &c.Store.DSN)
	setString("TECHTREE_ADDR", &c.Server.Addr)
	setString("TECHTREE_LOG_LEVEL", &c.Log.Level)
	setString("TECHTREE_LOG_FORMAT", &c.Log.Format)
	setString("TECHTREE_LOG_FILE", &c.Log.File)

	if v := os.Getenv("TECHTREE_MODEL"); v != "" {
		c.setModel(v)
	}
	if v := os.Getenv("TECHTREE_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TECHTREE_LLM_TIMEOUT: %w", err)
		}
		c.LLM.Timeout = d
	}
	for key, dst := range map[string]*int{
		"TECHTREE_MAX_RETRIES":       &c.LLM.Retry.MaxRetries,
		"TECHTREE_HISTORY_WINDOW":    &c.Tutor.HistoryWindow,
		"TECHTREE_MAX_EMPTY_ANSWERS": &c.Tutor.MaxEmptyAnswers,
		"TECHTREE_NOVELTY_WINDOW":    &c.Tutor.NoveltyWindow,
		"TECHTREE_QUEUE_SIZE":        &c.Server.QueueSize,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}

	if c.LLM.Anthropic.APIKey == "" {
		c.LLM.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.LLM.OpenAI.APIKey == "" {
		c.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.LLM.Gemini.APIKey == "" {
		c.LLM.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.LLM.OpenRouter.APIKey == "" {
		c.LLM.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return nil
}

// setModel sets the model of the selected provider.
func (c *Config) setModel(model string) {
	switch c.LLM.Provider {
	case "anthropic":
		c.LLM.Anthropic.Model = model
	case "openai":
		c.LLM.OpenAI.Model = model
	case "gemini":
		c.LLM.Gemini.Model = model
	case "openrouter":
		c.LLM.OpenRouter.Model = model
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if c.LLM.Timeout < 0 {
		return errors.New("llm: timeout must not be negative")
	}

	switch c.Store.Driver {
	case store.DriverSQLite:
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store: postgres needs a dsn")
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}

	switch {
	case c.Tutor.HistoryWindow <= 0:
		return errors.New("tutor: history_window must be positive")
	case c.Tutor.MaxEmptyAnswers < 0:
		return errors.New("tutor: max_empty_answers must not be negative")
	case c.Tutor.NoveltyWindow < 0:
		return errors.New("tutor: novelty_window must not be negative")
	}

	if c.Server.QueueSize <= 0 {
		return errors.New("server: queue_size must be positive")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

// Logger builds the zap logger. verbose forces debug level.
func (c LogConfig) Logger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if c.File != "" {
		zc.OutputPaths = []string{c.File}
		zc.ErrorOutputPaths = []string{c.File}
	}
	return zc.Build()
}
