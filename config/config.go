package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"catalog_service/internal/render"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

type Config struct {
	HTTPPort  string `envconfig:"HTTP_PORT"  default:":8080"`
	LogLevel  string `envconfig:"LOG_LEVEL"  default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	AppID        string `envconfig:"APP_ID"        default:"default-app-id"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`

	FirestoreProjectID         string        `envconfig:"FIRESTORE_PROJECT_ID"`
	FirestoreAPIKey            string        `envconfig:"FIRESTORE_API_KEY"`
	FirestoreBaseURL           string        `envconfig:"FIRESTORE_BASE_URL"`
	FirestorePollInterval      time.Duration `envconfig:"FIRESTORE_POLL_INTERVAL"       default:"2s"`
	FirestoreRequestsPerSecond int           `envconfig:"FIRESTORE_REQUESTS_PER_SECOND" default:"20"`

	RedisURL          string        `envconfig:"REDIS_URL"`
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	InitialAuthToken  string        `envconfig:"INITIAL_AUTH_TOKEN"`
	AdminEmail        string        `envconfig:"ADMIN_EMAIL"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`

	PlaceholderImageURL string `envconfig:"PLACEHOLDER_IMAGE_URL"`
	PriceFormat         string `envconfig:"PRICE_FORMAT"          default:"#.###,##"`
	CurrencySymbol      string `envconfig:"CURRENCY_SYMBOL"       default:"$"`
	SlideshowSampleSize int    `envconfig:"SLIDESHOW_SAMPLE_SIZE" default:"4"`
}

var (
	config Config
	once   sync.Once
)

// Load reads an optional .env file and then the environment.
func Load(logger *logrus.Logger) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		logger.Warnf("Error loading .env file (but continuing): %v", err)
	} else if err == nil {
		logger.Info("Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration from environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is Load for process startup: it loads once and exits on error.
func LoadConfig(logger *logrus.Logger) *Config {
	once.Do(func() {
		cfg, err := Load(logger)
		if err != nil {
			logger.Fatalf("Configuration error: %v", err)
		}
		config = *cfg
		logger.Infof("Configuration loaded: HTTP Port=%s, Backend=%s, AppID=%s, LogLevel=%s",
			config.HTTPPort, config.StoreBackend, config.AppID, config.LogLevel)
		if config.RedisURL != "" {
			logger.Info("Configuration loaded: sessions stored in Redis")
		} else {
			logger.Info("Configuration loaded: REDIS_URL not set, sessions kept in memory")
		}
	})
	return &config
}

func (c *Config) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendFirestore:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
		if c.FirestorePollInterval <= 0 {
			return fmt.Errorf("FIRESTORE_POLL_INTERVAL must be positive")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, postgres or firestore)", c.StoreBackend)
	}

	if strings.TrimSpace(c.AppID) == "" {
		return fmt.Errorf("APP_ID cannot be empty")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPasswordHash == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD_HASH must be set together")
	}
	if c.SlideshowSampleSize < 0 {
		return fmt.Errorf("SLIDESHOW_SAMPLE_SIZE cannot be negative")
	}
	if err := render.ValidatePriceFormat(c.PriceFormat); err != nil {
		return fmt.Errorf("PRICE_FORMAT: %w", err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}
