package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Auth        AuthConfig
	Storage     StorageConfig
	Debug       DebugConfig
}

type ServerConfig struct {
	Port int
}

type AuthConfig struct {
	SessionSecret      string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	SecureCookie       bool
}

type StorageConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicBaseURL   string
	UsePathStyle    bool
}

type DebugConfig struct {
	LogCap int
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ninegrid_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("ninegrid_port", 8080)
	v.SetDefault("ninegrid_secure_cookie", false)
	v.SetDefault("ninegrid_s3_region", "us-east-1")
	v.SetDefault("ninegrid_s3_endpoint", "")
	v.SetDefault("ninegrid_s3_bucket", "grid-images")
	v.SetDefault("ninegrid_s3_public_url", "")
	v.SetDefault("ninegrid_s3_path_style", true)
	v.SetDefault("ninegrid_debug_log_cap", 500)

	env := resolveEnvironment(v)
	port := v.GetInt("ninegrid_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid NINEGRID_PORT: %d", port)
	}

	logCap := v.GetInt("ninegrid_debug_log_cap")
	if logCap <= 0 {
		logCap = 500
	}
	if logCap > 10000 {
		logCap = 10000
	}

	callbackURL := strings.TrimSpace(v.GetString("github_callback_url"))
	if callbackURL == "" {
		callbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", port)
	}

	cfg := Config{
		Environment: env,
		Server:      ServerConfig{Port: port},
		Auth: AuthConfig{
			SessionSecret:      strings.TrimSpace(v.GetString("ninegrid_session_secret")),
			GitHubClientID:     strings.TrimSpace(v.GetString("github_client_id")),
			GitHubClientSecret: strings.TrimSpace(v.GetString("github_client_secret")),
			GitHubCallbackURL:  callbackURL,
			SecureCookie:       v.GetBool("ninegrid_secure_cookie"),
		},
		Storage: StorageConfig{
			Region:          strings.TrimSpace(v.GetString("ninegrid_s3_region")),
			Endpoint:        strings.TrimSpace(v.GetString("ninegrid_s3_endpoint")),
			AccessKeyID:     strings.TrimSpace(v.GetString("ninegrid_s3_access_key_id")),
			SecretAccessKey: strings.TrimSpace(v.GetString("ninegrid_s3_secret_access_key")),
			Bucket:          strings.TrimSpace(v.GetString("ninegrid_s3_bucket")),
			PublicBaseURL:   strings.TrimSpace(v.GetString("ninegrid_s3_public_url")),
			UsePathStyle:    v.GetBool("ninegrid_s3_path_style"),
		},
		Debug: DebugConfig{LogCap: logCap},
	}

	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "grid-images"
	}
	if !cfg.IsLocalDevelopment() && cfg.Auth.SessionSecret == "" {
		return Config{}, fmt.Errorf("NINEGRID_SESSION_SECRET is required outside local/dev environments")
	}
	if cfg.IsLocalDevelopment() && cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = "ninegrid-local-dev"
	}

	return cfg, nil
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"ninegrid_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
