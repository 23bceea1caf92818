package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDBHost   = "localhost"
	DefaultDBPort   = 5432
	DefaultDBUser   = "postgres"
	DefaultDBName   = "postgres"
	DefaultDBDriver = "postgres"
)

// Config holds connection settings. URL wins when set; otherwise a postgres
// URL is assembled from the parts. Precedence: defaults < config file <
// environment (.env included) < CLI flags.
type Config struct {
	URL      string `yaml:"url"`
	DBDriver string `yaml:"driver"`
	DBUser   string `yaml:"user"`
	DBPass   string `yaml:"password"`
	DBHost   string `yaml:"host"`
	DBPort   int    `yaml:"port"`
	DBName   string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// then environment variables (a .env file is honored).
func LoadConfig(configFile string) (Config, error) {
	cfg := Config{
		DBDriver: DefaultDBDriver,
		DBUser:   DefaultDBUser,
		DBHost:   DefaultDBHost,
		DBPort:   DefaultDBPort,
		DBName:   DefaultDBName,
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return cfg, fmt.Errorf("unable to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("unable to parse config file %s: %w", configFile, err)
		}
	}

	_ = godotenv.Load()

	cfg.URL = envOrDefault("SQLPORT_URL", cfg.URL)
	cfg.DBDriver = envOrDefault("DB_DRIVER", cfg.DBDriver)
	cfg.DBUser = envOrDefault("DB_USER", cfg.DBUser)
	cfg.DBPass = envOrDefault("DB_PASS", cfg.DBPass)
	cfg.DBHost = envOrDefault("DB_HOST", cfg.DBHost)
	cfg.DBPort = envOrDefaultInt("DB_PORT", cfg.DBPort)
	cfg.DBName = envOrDefault("DB_NAME", cfg.DBName)
	cfg.SSLMode = envOrDefault("DB_SSLMODE", cfg.SSLMode)

	return cfg, nil
}

// Validate checks that the configuration has valid values.
func (c Config) Validate() error {
	if c.URL != "" {
		return nil // the store validates the URL scheme itself
	}

	if c.DBPort < 1 || c.DBPort > 65535 {
		return fmt.Errorf("port must be a valid port number (1-65535)")
	}

	if strings.TrimSpace(c.DBHost) == "" {
		return fmt.Errorf("host cannot be empty or contain only whitespace")
	}

	if strings.TrimSpace(c.DBName) == "" {
		return fmt.Errorf("database name cannot be empty or contain only whitespace")
	}

	if strings.TrimSpace(c.DBUser) == "" {
		return fmt.Errorf("user cannot be empty or contain only whitespace")
	}

	return nil
}

// ConnectionURL returns the URL to hand to the store: URL as-is when set,
// otherwise assembled from the parts.
func (c Config) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}

	u := &url.URL{
		Scheme: c.DBDriver,
		User:   url.UserPassword(c.DBUser, c.DBPass),
		Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:   c.DBName,
	}
	q := u.Query()
	if strings.TrimSpace(c.SSLMode) != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func envOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		p, err := strconv.Atoi(value)
		if err == nil {
			return p
		}
	}
	return defaultValue
}
