package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nvbf/tournament-desk/models"
)

const (
	StoreBadger    = "badger"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

// Config holds the settings of one desk process. Values come from the YAML file,
// then from the environment, then from defaults for whatever is still empty.
type Config struct {
	SessionID               string        `yaml:"session_id" env:"SESSION_ID"`
	LogLevel                string        `yaml:"log_level" env:"LOG_LEVEL"`
	Port                    string        `yaml:"port" env:"PORT"`
	CORSHosts               string        `yaml:"cors_hosts" env:"CORS_HOSTS"`
	HostURL                 string        `yaml:"host_url" env:"HOST_URL"`
	StoreBackend            string        `yaml:"store_backend" env:"STORE_BACKEND"`
	BadgerPath              string        `yaml:"badger_path" env:"BADGER_PATH"`
	FirebaseProjectID       string        `yaml:"firebase_project_id" env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsJSON string        `yaml:"firebase_credentials_json" env:"FIREBASE_CREDENTIALS_JSON"`
	NATSURL                 string        `yaml:"nats_url" env:"NATS_URL"`
	ChannelPrefix           string        `yaml:"channel_prefix" env:"CHANNEL_PREFIX"`
	AuthorityEnabled        bool          `yaml:"authority_enabled" env:"AUTHORITY_ENABLED"`
	KeyTTL                  time.Duration `yaml:"key_ttl" env:"KEY_TTL"`
	KeySigningSecret        string        `yaml:"key_signing_secret" env:"KEY_SIGNING_SECRET"`
	RedeemTimeout           time.Duration `yaml:"redeem_timeout" env:"REDEEM_TIMEOUT"`
	RedeemRate              float64       `yaml:"redeem_rate" env:"REDEEM_RATE"`
	RedeemBurst             int           `yaml:"redeem_burst" env:"REDEEM_BURST"`
	ResendKey               string        `yaml:"resend_key" env:"RESEND_KEY"`
	ResendFrom              string        `yaml:"resend_from" env:"RESEND_FROM"`
	QueueSize               int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	DefaultRole             string        `yaml:"default_role" env:"DEFAULT_ROLE"`
}

// LoadConfig reads filename if it exists, loads a .env file if there is one and applies the environment on top.
func LoadConfig(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.SessionID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "desk"
		}
		c.SessionID = host
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.StoreBackend == "" {
		c.StoreBackend = StoreBadger
	}
	if c.BadgerPath == "" {
		c.BadgerPath = "data/badger"
	}
	if c.ChannelPrefix == "" {
		c.ChannelPrefix = "tournament-desk"
	}
	if c.RedeemTimeout == 0 {
		c.RedeemTimeout = 10 * time.Second
	}
	if c.RedeemRate == 0 {
		c.RedeemRate = 1
	}
	if c.RedeemBurst == 0 {
		c.RedeemBurst = 5
	}
	if c.ResendFrom == "" {
		c.ResendFrom = "onboarding@resend.dev"
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
}

// Validate reports the first setting that cannot work, by its environment name.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBadger, StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	if c.StoreBackend == StoreFirestore && c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID: required for the firestore backend")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.DefaultRole != "" && !models.Role(c.DefaultRole).IsValid() {
		return fmt.Errorf("DEFAULT_ROLE: unknown role %q", c.DefaultRole)
	}
	if c.KeyTTL < 0 {
		return errors.New("KEY_TTL: must not be negative")
	}
	if c.QueueSize < 0 {
		return errors.New("QUEUE_SIZE: must not be negative")
	}
	if c.RedeemRate < 0 || c.RedeemBurst < 0 {
		return errors.New("REDEEM_RATE: rate and burst must not be negative")
	}
	return nil
}

func (c *Config) AllowOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSHosts, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
