package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	Batch    BatchConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
	LogLevel string
}

// OCRConfig holds recognition-engine configuration
type OCRConfig struct {
	Engine              string // "cli" (tesseract binary) or "native" (libtesseract)
	Tesseract           string
	TesseractLang       string
	TessdataDir         string
	PSM                 int
	OEM                 int
	EnableTSVConfidence bool
}

// BatchConfig holds batch-orchestration configuration
type BatchConfig struct {
	Operator       string
	Workers        int
	ProcessTimeout time.Duration
	UploadDir      string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		OCR: OCRConfig{
			Engine:              getEnv("OCR_ENGINE", "cli"),
			Tesseract:           getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang:       getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:         getEnv("TESSDATA_PREFIX", ""),
			PSM:                 getEnvAsInt("TESSERACT_PSM", 0),
			OEM:                 getEnvAsInt("TESSERACT_OEM", 0),
			EnableTSVConfidence: getEnvAsBool("TESSERACT_TSV_CONFIDENCE", true),
		},
		Batch: BatchConfig{
			Operator:       getEnv("OCR_OPERATOR", "ocr_auto"),
			Workers:        getEnvAsInt("BATCH_WORKERS", 1),
			ProcessTimeout: getEnvAsDuration("BATCH_PROCESS_TIMEOUT", 10*time.Minute),
			UploadDir:      getEnv("UPLOAD_DIR", "./tmp/uploads"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.Engine != "cli" && c.OCR.Engine != "native" {
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be cli or native", ErrInvalidInput)
	}
	return nil
}
