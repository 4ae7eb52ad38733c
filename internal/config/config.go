package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   string
	LogFormat  string
	LogFile    string

	BlobBackend string
	BlobPath    string
	BlobURL     string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool
	S3PublicURL string

	CRMBaseURL        string
	CRMAPIKey         string
	CRMBaseID         string
	CRMTable          string
	CRMKeyField       string
	CRMFieldVisitDate string
	CRMFieldStatus    string
	CRMFieldProgress  string
	CRMMaxAttempts    int
	CRMBackoff        time.Duration
	CRMTimeout        time.Duration

	AutosaveDelay     time.Duration
	UploadConcurrency int
	SessionCacheSize  int
}

// Load reads the process environment, after merging an optional .env file
// from the working directory. Variables already set take precedence.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),
		DBPath:     getEnv("DB_PATH", "/data/renocheck.db"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "json"),
		LogFile:    getEnv("LOG_FILE", ""),

		BlobBackend: getEnv("BLOB_BACKEND", "local"),
		BlobPath:    getEnv("BLOB_LOCAL_PATH", "/data/attachments"),
		BlobURL:     getEnv("BLOB_LOCAL_URL", "http://localhost:8080/files"),
		S3Endpoint:  getEnv("S3_ENDPOINT", "localhost:9000"),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Bucket:    getEnv("S3_BUCKET", "inspection-images"),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
		S3UseSSL:    getBool("S3_USE_SSL", false),
		S3PublicURL: getEnv("S3_PUBLIC_URL", ""),

		CRMBaseURL:        getEnv("CRM_BASE_URL", "https://api.airtable.com"),
		CRMAPIKey:         getEnv("CRM_API_KEY", ""),
		CRMBaseID:         getEnv("CRM_BASE_ID", ""),
		CRMTable:          getEnv("CRM_TABLE", "Properties"),
		CRMKeyField:       getEnv("CRM_KEY_FIELD", "Unique ID"),
		CRMFieldVisitDate: getEnv("CRM_FIELD_VISIT_DATE", ""),
		CRMFieldStatus:    getEnv("CRM_FIELD_STATUS", ""),
		CRMFieldProgress:  getEnv("CRM_FIELD_PROGRESS", ""),
		CRMMaxAttempts:    getInt("CRM_MAX_ATTEMPTS", 3),
		CRMBackoff:        getDuration("CRM_BACKOFF", 500*time.Millisecond),
		CRMTimeout:        getDuration("CRM_TIMEOUT", 15*time.Second),

		AutosaveDelay:     getDuration("AUTOSAVE_DELAY", 0),
		UploadConcurrency: getInt("UPLOAD_CONCURRENCY", 4),
		SessionCacheSize:  getInt("SESSION_CACHE_SIZE", 256),
	}
}

// CRMEnabled reports whether enough CRM settings are present to push updates.
func (c *Config) CRMEnabled() bool {
	return c.CRMAPIKey != "" && c.CRMBaseID != ""
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
