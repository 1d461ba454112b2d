package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AllowedOrigins []string
	PostgresURL    string
	JWTKey         string
	Debug          bool
}

// Load reads a .env file if one is present, then the process environment.
// Missing required variables are reported together so a broken deploy fails
// with one clear message.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:  "5000",
		Debug: os.Getenv("DEBUG") == "true",
	}

	if port, ok := os.LookupEnv("PORT"); ok {
		cfg.Port = port
	}

	missing := []string{}

	origins, ok := os.LookupEnv("ALLOWED_ORIGINS")
	if !ok {
		missing = append(missing, "ALLOWED_ORIGINS")
	}
	cfg.AllowedOrigins = strings.Split(origins, ",")

	cfg.PostgresURL, ok = os.LookupEnv("POSTGRES_URL")
	if !ok {
		missing = append(missing, "POSTGRES_URL")
	}

	cfg.JWTKey, ok = os.LookupEnv("JWT_KEY")
	if !ok {
		missing = append(missing, "JWT_KEY")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}
