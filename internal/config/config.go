package config

import (
	"os"
	"time"
)

type Config struct {
	HTTPAddr        string
	DBDriver        string
	DBDSN           string
	PoolSize        int
	JWTSecret       string
	AdminEmail      string
	AdminPass       string
	GELFAddr        string
	SessionTTL      time.Duration
	UploadMaxBytes  int64
	SignedURLTTL    time.Duration
	FormID          string
	QuestionnaireID string
	SeedFile        string
	SecureCookies   bool
}

func Load() *Config {
	return &Config{
		HTTPAddr:        getEnv("INTAKE_ADDR", ":8080"),
		DBDriver:        getEnv("INTAKE_DB_DRIVER", "sqlite"),
		DBDSN:           getEnv("INTAKE_DB_DSN", "file:intake.db?_pragma=foreign_keys(1)"),
		PoolSize:        getEnvInt("INTAKE_DB_POOL_SIZE", 5),
		JWTSecret:       getEnv("INTAKE_JWT_SECRET", "intake-dev-secret-change-me"),
		AdminEmail:      getEnv("INTAKE_ADMIN_EMAIL", "admin@intake.local"),
		AdminPass:       getEnv("INTAKE_ADMIN_PASS", "admin123"),
		GELFAddr:        getEnv("INTAKE_GELF_ADDR", ""),
		SessionTTL:      getEnvDuration("INTAKE_SESSION_TTL", 24*time.Hour),
		UploadMaxBytes:  int64(getEnvInt("INTAKE_UPLOAD_MAX_BYTES", 12<<20)),
		SignedURLTTL:    getEnvDuration("INTAKE_SIGNED_URL_TTL", 15*time.Minute),
		FormID:          getEnv("INTAKE_FORM_ID", "bankruptcy-application"),
		QuestionnaireID: getEnv("INTAKE_QUESTIONNAIRE_ID", "financial-questionnaire"),
		SeedFile:        getEnv("INTAKE_SEED_FILE", ""),
		SecureCookies:   getEnv("INTAKE_SECURE_COOKIES", "") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
