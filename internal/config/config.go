package config

import (
	"errors"
	"os"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

type Config struct {
	HTTP_PORT      string `env:"HTTP_PORT"`
	DB_STRING      string `env:"DB_STRING"`
	APP_ENV        string `env:"APP_ENV"`
	WEBHOOK_SECRET string `env:"WEBHOOK_SECRET"`
	REDIS_ADDR     string `env:"REDIS_ADDR"`
	KAFKA_BROKERS  string `env:"KAFKA_BROKERS"`
	KAFKA_TOPIC    string `env:"KAFKA_TOPIC"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTP_PORT:      os.Getenv("HTTP_PORT"),
		DB_STRING:      os.Getenv("DB_STRING"),
		APP_ENV:        os.Getenv("APP_ENV"),
		WEBHOOK_SECRET: os.Getenv("WEBHOOK_SECRET"),
		REDIS_ADDR:     os.Getenv("REDIS_ADDR"),
		KAFKA_BROKERS:  os.Getenv("KAFKA_BROKERS"),
		KAFKA_TOPIC:    os.Getenv("KAFKA_TOPIC"),
	}

	if cfg.HTTP_PORT == "" {
		cfg.HTTP_PORT = "8080"
	}

	// default to the strict mode; development has to be asked for explicitly
	if cfg.APP_ENV == "" {
		cfg.APP_ENV = EnvProduction
	}

	if cfg.APP_ENV == EnvProduction && cfg.WEBHOOK_SECRET == "" {
		return nil, errors.New("WEBHOOK_SECRET is required in production")
	}

	return cfg, nil
}
