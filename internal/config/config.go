package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the service.
type Config struct {
	ServerAddress string
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	IPWhitelist   WhitelistConfig
	Providers     map[string]ProviderConfig
	Upload        UploadConfig
	Redis         RedisConfig
	Audit         AuditConfig
}

// AuthConfig holds the credential store parsed from the environment. Secrets
// stay plaintext here; the guard hashes them at construction.
type AuthConfig struct {
	Enabled bool
	Users   map[string]string
}

type RateLimitConfig struct {
	Enabled       bool
	Ceiling       int
	WindowSeconds int
}

type WhitelistConfig struct {
	Enabled bool
	IPs     []string
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

type UploadConfig struct {
	Dir               string
	MaxBytes          int64
	AllowedExtensions []string
}

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// AuditConfig selects the optional access-log database. An empty DSN
// disables the audit store.
type AuditConfig struct {
	Driver string
	DSN    string
}

// Load reads configuration from the environment, honoring a .env file when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddress: envString("SERVER_ADDRESS", ":8080"),
		Auth: AuthConfig{
			Enabled: envBool("ENABLE_AUTH", true),
		},
		RateLimit: RateLimitConfig{
			Enabled:       envBool("ENABLE_RATE_LIMIT", true),
			Ceiling:       envInt("RATE_LIMIT_REQUESTS", 10),
			WindowSeconds: envInt("RATE_LIMIT_WINDOW", 60),
		},
		IPWhitelist: WhitelistConfig{
			Enabled: envBool("ENABLE_IP_WHITELIST", false),
			IPs:     splitTrimmed(os.Getenv("IP_WHITELIST")),
		},
		Providers: map[string]ProviderConfig{
			"openai": {
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
			},
			"gemini": {
				APIKey: os.Getenv("GEMINI_API_KEY"),
			},
			"claude": {
				BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			},
		},
		Upload: UploadConfig{
			Dir:               envString("UPLOAD_DIR", "./data/uploads"),
			MaxBytes:          int64(envInt("MAX_UPLOAD_MB", 16)) << 20,
			AllowedExtensions: splitTrimmed(envString("ALLOWED_EXTENSIONS", "png,jpg,jpeg,gif,webp")),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Username: os.Getenv("REDIS_USERNAME"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		Audit: AuditConfig{
			Driver: envString("AUDIT_DB_DRIVER", "sqlite3"),
			DSN:    os.Getenv("AUDIT_DB_DSN"),
		},
	}

	users, err := parseUsers()
	if err != nil {
		return nil, err
	}
	cfg.Auth.Users = users

	if cfg.RateLimit.Ceiling <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", cfg.RateLimit.Ceiling)
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %d", cfg.RateLimit.WindowSeconds)
	}
	return cfg, nil
}

// parseUsers builds the credential store: the admin pair plus, when
// multi-user mode is on, the comma-separated USERS_CONFIG "user:pass" pairs.
func parseUsers() (map[string]string, error) {
	users := make(map[string]string)

	admin := envString("ADMIN_USERNAME", "admin")
	adminPass := envString("ADMIN_PASSWORD", "change_me_please!")
	users[admin] = adminPass

	if !envBool("ENABLE_MULTI_USER", true) {
		return users, nil
	}
	raw := os.Getenv("USERS_CONFIG")
	if raw == "" {
		return users, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, pass, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("USERS_CONFIG entry %q is not user:pass", pair)
		}
		name = strings.TrimSpace(name)
		pass = strings.TrimSpace(pass)
		if name == "" || pass == "" {
			continue
		}
		users[name] = pass
	}
	return users, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitTrimmed(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
