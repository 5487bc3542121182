package server

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds the HTTP server configuration.
type Config struct {
	Logger         *slog.Logger
	Addr           string
	AllowedOrigins []string
}

// LoadFromEnv builds a Config from environment variables, with defaults
// suitable for local development.
func LoadFromEnv(log *slog.Logger) Config {
	return Config{
		Logger:         log,
		Addr:           getenv("MEOKTEN_API_ADDR", ":8080"),
		AllowedOrigins: splitList(getenv("MEOKTEN_ALLOWED_ORIGINS", "http://localhost:5173")),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
