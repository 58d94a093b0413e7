package config

import (
	"fmt"
	"os"
	"time"

	"tank-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	BackendURL       string
	SocketURL        string
	DBPath           string
	ServerPort       string
	LogLevel         string
	DebounceWindow   time.Duration
	SocketAckTimeout time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		BackendURL:       getEnv("BACKEND_URL", ""),
		SocketURL:        getEnv("SOCKET_URL", ""),
		DBPath:           getEnv("DB_PATH", "tank-tracker.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DebounceWindow:   getDuration("DEBOUNCE_WINDOW", constants.DebounceWindow),
		SocketAckTimeout: getDuration("SOCKET_ACK_TIMEOUT", constants.SocketAckTimeout),
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	if cfg.SocketURL == "" {
		// Derived default: same host as the backend, ws scheme.
		cfg.SocketURL = deriveSocketURL(cfg.BackendURL)
	}

	logger.Info().
		Str("backend_url", cfg.BackendURL).
		Str("socket_url", cfg.SocketURL).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("debounce_window", cfg.DebounceWindow).
		Msg("configuration loaded")

	return cfg, nil
}

func deriveSocketURL(backendURL string) string {
	switch {
	case len(backendURL) > 8 && backendURL[:8] == "https://":
		return "wss://" + backendURL[8:] + "/ws"
	case len(backendURL) > 7 && backendURL[:7] == "http://":
		return "ws://" + backendURL[7:] + "/ws"
	default:
		return "ws://" + backendURL + "/ws"
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
