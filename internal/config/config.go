package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                 string
	ListenAddr          string
	DatabaseURL         string
	OrgName             string
	PortalBaseURL       string
	SMTPAddr            string
	SMTPFrom            string
	SMTPUsername        string
	SMTPPassword        string
	StorageDir          string
	StorageBaseURL      string
	SigningTokenTTLDays int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Load() (Config, error) {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	cfg := Config{
		Env:                 getenv("APP_ENV", "development"),
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		OrgName:             getenv("ORG_NAME", "Fleet Operations"),
		PortalBaseURL:       getenv("PORTAL_BASE_URL", "http://localhost:8080"),
		SMTPAddr:            getenv("SMTP_ADDR", "localhost:25"),
		SMTPFrom:            getenv("SMTP_FROM", "no-reply@localhost"),
		SMTPUsername:        os.Getenv("SMTP_USERNAME"),
		SMTPPassword:        os.Getenv("SMTP_PASSWORD"),
		StorageDir:          getenv("STORAGE_DIR", "./data/uploads"),
		StorageBaseURL:      getenv("STORAGE_BASE_URL", "http://localhost:8080/files"),
		SigningTokenTTLDays: getenvInt("SIGNING_TOKEN_TTL_DAYS", 14),
	}
	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}
