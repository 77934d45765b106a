package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	OCR      OCRConfig
	Storage  StorageConfig
	Jobs     JobsConfig
}

// DatabaseConfig holds job-store configuration
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite" | "memory"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string // "tesseract" | "vision"
	Tesseract     string // binary name or absolute path
	Pdftotext     string
	Pdftoppm      string
	TessdataDir   string
	TesseractLang string
	DPI           int
	MaxPages      int
}

// StorageConfig holds object-store configuration
type StorageConfig struct {
	Backend   string // "s3" | "local"
	Bucket    string
	Region    string
	Endpoint  string // optional custom endpoint (minio etc.)
	PathStyle bool
	LocalDir  string
}

// JobsConfig holds orchestrator configuration
type JobsConfig struct {
	MaxConcurrent int
	FileTimeout   time.Duration
	RetentionDays int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "memory"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Engine:        getEnv("OCR_ENGINE", "tesseract"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", "local"),
			Bucket:    getEnv("STORAGE_S3_BUCKET", ""),
			Region:    getEnv("STORAGE_S3_REGION", "us-east-1"),
			Endpoint:  getEnv("STORAGE_S3_ENDPOINT", ""),
			PathStyle: getEnvAsBool("STORAGE_S3_PATH_STYLE", false),
			LocalDir:  getEnv("STORAGE_LOCAL_DIR", "./data"),
		},
		Jobs: JobsConfig{
			MaxConcurrent: getEnvAsInt("JOBS_MAX_CONCURRENT", 5),
			FileTimeout:   getEnvAsDuration("JOBS_FILE_TIMEOUT", 3*time.Minute),
			RetentionDays: getEnvAsInt("JOBS_RETENTION_DAYS", 30),
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
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres driver", ErrInvalidInput)
	}
	if c.Storage.Backend == "s3" && c.Storage.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_S3_BUCKET is required for the s3 backend", ErrInvalidInput)
	}
	if c.Jobs.MaxConcurrent < 1 {
		return NewAppError("CONFIG_ERROR", "JOBS_MAX_CONCURRENT must be >= 1", ErrInvalidInput)
	}
	return nil
}
