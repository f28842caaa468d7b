package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	DatabaseURL         string
	JWTSecret           string
	StoragePath         string
	StorageBaseURL      string
	GeoIPDBPath         string
	ReferenceAPIKey     string
	ReferenceBaseURL    string
	ReferenceModel      string
	UGCAPIKey           string
	UGCBaseURL          string
	UGCModel            string
	ProviderTimeout     time.Duration
	DownloadTimeout     time.Duration
	QualityCheckTimeout time.Duration
	AssetRetentionDays  int
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	RateLimitPerMin     int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		StoragePath:         getEnv("STORAGE_PATH", "./data/assets"),
		StorageBaseURL:      os.Getenv("STORAGE_BASE_URL"),
		GeoIPDBPath:         os.Getenv("GEOIP_DB_PATH"),
		ReferenceAPIKey:     os.Getenv("REFERENCE_API_KEY"),
		ReferenceBaseURL:    os.Getenv("REFERENCE_BASE_URL"),
		ReferenceModel:      os.Getenv("REFERENCE_MODEL"),
		UGCAPIKey:           os.Getenv("UGC_API_KEY"),
		UGCBaseURL:          os.Getenv("UGC_BASE_URL"),
		UGCModel:            os.Getenv("UGC_MODEL"),
		ProviderTimeout:     time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30)),
		DownloadTimeout:     time.Second * time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 90)),
		QualityCheckTimeout: time.Second * time.Duration(getEnvInt("QUALITY_CHECK_TIMEOUT_SECONDS", 10)),
		AssetRetentionDays:  getEnvInt("ASSET_RETENTION_DAYS", 30),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}

	if cfg.AssetRetentionDays <= 0 {
		cfg.AssetRetentionDays = 30
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
