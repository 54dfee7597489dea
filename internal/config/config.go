package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

type Config struct {
	DBPath           string
	ServerPort       string
	LogLevel         string
	PaymentKeyID     string
	PaymentKeySecret string
	PaymentBaseURL   string
	AnomalyModelPath string
}

func Load() (*Config, error) {
	// A missing .env file is fine; the process environment takes over.
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:           getEnv("DB_PATH", "festival.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		PaymentKeyID:     getEnv("PAYMENT_KEY_ID", ""),
		PaymentKeySecret: getEnv("PAYMENT_KEY_SECRET", ""),
		PaymentBaseURL:   getEnv("PAYMENT_BASE_URL", "https://api.razorpay.com"),
		AnomalyModelPath: getEnv("ANOMALY_MODEL_PATH", ""),
	}

	if cfg.PaymentKeyID == "" || cfg.PaymentKeySecret == "" {
		return nil, fmt.Errorf("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET are required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
