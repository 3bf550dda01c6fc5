package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Whisper  WhisperConfig
	Pipeline PipelineConfig
	Session  SessionConfig
	Audio    AudioConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	AllowedOrigins  []string
	ShutdownTimeout int
}

// DatabaseConfig holds database configuration for the transcript sink
type DatabaseConfig struct {
	Host        string
	Port        string
	User        string
	Password    string
	Name        string
	SSLMode     string
	MaxConns    int
	MinConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis configuration for the session store. An empty
// Host selects the in-memory store instead.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig holds object-storage configuration for the audio archive.
// An empty Endpoint disables archiving.
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	UseSSL          bool
	RetentionDays   int
}

// WhisperConfig holds the batch transcription backend configuration.
type WhisperConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// Configured reports whether the batch backend can be called.
func (w WhisperConfig) Configured() bool {
	return w.Endpoint != "" && w.APIKey != ""
}

// PipelineConfig holds the external workflow backend configuration.
type PipelineConfig struct {
	WebhookURL string
	APIKey     string
	Timeout    time.Duration
	Enabled    bool
}

// Configured reports whether the pipeline backend can be called.
func (p PipelineConfig) Configured() bool {
	return p.Enabled && p.WebhookURL != ""
}

// SessionConfig holds live-session store settings.
type SessionConfig struct {
	TTL time.Duration
}

// AudioConfig holds segmentation settings.
type AudioConfig struct {
	ChunkDuration time.Duration
	MinChunkBytes int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Host:            getEnv("HOST", "0.0.0.0"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  []string{getEnv("ALLOWED_ORIGINS", "http://localhost:3000")},
			ShutdownTimeout: getEnvAsInt("SHUTDOWN_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "5432"),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			Name:        getEnv("DB_NAME", "conversationhub"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:    getEnvAsInt("DB_MIN_CONNS", 5),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			BucketName:      getEnv("STORAGE_BUCKET", "conversationhub-audio"),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
			RetentionDays:   getEnvAsInt("DATA_RETENTION_AUDIO_DAYS", 30),
		},
		Whisper: WhisperConfig{
			Endpoint: getEnv("WHISPER_ENDPOINT", ""),
			APIKey:   getEnv("WHISPER_API_KEY", ""),
			Model:    getEnv("WHISPER_MODEL", "whisper"),
			Language: getEnv("WHISPER_LANGUAGE", "nl"),
			Timeout:  getEnvAsDuration("WHISPER_TIMEOUT", "30s"),
		},
		Pipeline: PipelineConfig{
			WebhookURL: getEnv("PIPELINE_WEBHOOK_URL", ""),
			APIKey:     getEnv("PIPELINE_API_KEY", ""),
			Timeout:    getEnvAsDuration("PIPELINE_TIMEOUT", "60s"),
			Enabled:    getEnvAsBool("PIPELINE_ENABLED", false),
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", "4h"),
		},
		Audio: AudioConfig{
			ChunkDuration: getEnvAsDuration("AUDIO_CHUNK_DURATION", "30s"),
			MinChunkBytes: getEnvAsInt("AUDIO_MIN_CHUNK_BYTES", 10*1024),
		},
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Audio.ChunkDuration < 10*time.Second || c.Audio.ChunkDuration > 120*time.Second {
		return fmt.Errorf("AUDIO_CHUNK_DURATION must be between 10s and 120s")
	}
	return nil
}

// DefaultService returns the backend used when a caller asks for "auto".
func (c *Config) DefaultService() string {
	switch {
	case c.Pipeline.Configured():
		return "pipeline"
	case c.Whisper.Configured():
		return "batch"
	default:
		return "none"
	}
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}
	return duration
}
