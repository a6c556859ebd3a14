package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Storage backends for the message, session and title collaborators.
const (
	StorageBackendPostgres  = "postgres"
	StorageBackendSQLite    = "sqlite"
	StorageBackendFirestore = "firestore"
)

type Config struct {
	Port    string
	GinMode string

	// Logging
	LogLevel  string
	LogFormat string

	// Storage
	StorageBackend    string
	DatabaseURL       string
	FirebaseProjectID string
	FirebaseCredJSON  string

	// Database Connection Pool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// NATS
	NatsURL        string
	IdleSubject    string
	IdleQueue      string
	NoticeSubject  string
	NoticesEnabled bool

	// Title worker pool
	TitleWorkerPoolSize int
	TitleBufferSize     int
	TitleTimeoutSeconds int

	// Server
	ServerShutdownTimeoutSeconds int

	// Title generation settings, loaded from the config file.
	TitleGeneration *TitleGenerationConfig `yaml:"title_generation"`
}

var AppConfig *Config

// LoadConfig reads the environment (and .env, if present) followed by the config file
// named by CONFIG_FILE. Any error is fatal.
func LoadConfig() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = FromEnv()

	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	log.Printf("Loading config file: %v", configFilePath)

	configFile, err := os.Open(configFilePath)
	defer func() {
		if configFile != nil {
			configFile.Close()
		}
	}()

	switch {
	case err == nil:
		if err := LoadConfigFile(configFile, AppConfig); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	case os.IsNotExist(err):
		log.Printf("Config file %s not found, using built-in title generation defaults", configFilePath)
	default:
		log.Fatalf("Failed to open config file: %v", err)
	}

	if err := AppConfig.Finalize(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if AppConfig.NatsURL == "" {
		log.Println("Warning: NATS_URL is not set. Idle events are only accepted over HTTP.")
	}

	if AppConfig.TitleGeneration.Model == "" {
		log.Println("No title model configured, the fallback chain will be used")
	}
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		// Storage
		StorageBackend:    getEnvOrDefault("STORAGE_BACKEND", StorageBackendPostgres),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", "postgres://localhost/session_titler?sslmode=disable"),
		FirebaseProjectID: getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:  getEnvOrDefault("FIREBASE_CRED_JSON", ""),

		// Database Connection Pool
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 1),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		// NATS
		NatsURL:        getEnvOrDefault("NATS_URL", ""),
		IdleSubject:    getEnvOrDefault("IDLE_SUBJECT", "session.idle"),
		IdleQueue:      getEnvOrDefault("IDLE_QUEUE", "session-titler"),
		NoticeSubject:  getEnvOrDefault("NOTICE_SUBJECT", "session.notice"),
		NoticesEnabled: getEnvOrDefault("NOTICES_ENABLED", "true") == "true",

		// Title worker pool
		TitleWorkerPoolSize: getEnvAsInt("TITLE_WORKER_POOL_SIZE", 4),
		TitleBufferSize:     getEnvAsInt("TITLE_BUFFER_SIZE", 256),
		TitleTimeoutSeconds: getEnvAsInt("TITLE_TIMEOUT_SECONDS", 60),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),
	}
}

// Finalize applies defaults that depend on the config file and validates the result.
func (c *Config) Finalize() error {
	if c.TitleGeneration == nil {
		c.TitleGeneration = DefaultTitleGenerationConfig()
		if err := c.TitleGeneration.Validate(); err != nil {
			return err
		}
	}

	switch c.StorageBackend {
	case StorageBackendPostgres, StorageBackendSQLite, StorageBackendFirestore:
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.TitleWorkerPoolSize <= 0 {
		return fmt.Errorf("TITLE_WORKER_POOL_SIZE must be positive, got %d", c.TitleWorkerPoolSize)
	}

	if c.TitleBufferSize <= 0 {
		return fmt.Errorf("TITLE_BUFFER_SIZE must be positive, got %d", c.TitleBufferSize)
	}

	return nil
}

// TitleTimeout is the upper bound of a single title pipeline run.
func (c *Config) TitleTimeout() time.Duration {
	return time.Duration(c.TitleTimeoutSeconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}
