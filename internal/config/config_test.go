package config

import "testing"

func TestLoadDefaultsForLocalDevelopment(t *testing.T) {
	t.Setenv("NINEGRID_ENV", "dev")
	t.Setenv("NINEGRID_SESSION_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.SessionSecret != "ninegrid-local-dev" {
		t.Fatalf("expected local fallback secret, got %q", cfg.Auth.SessionSecret)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Bucket != "grid-images" {
		t.Fatalf("expected default bucket, got %q", cfg.Storage.Bucket)
	}
	if cfg.Debug.LogCap != 500 {
		t.Fatalf("expected default debug log cap 500, got %d", cfg.Debug.LogCap)
	}
}

func TestLoadRequiresSessionSecretOutsideLocal(t *testing.T) {
	t.Setenv("NINEGRID_ENV", "production")
	t.Setenv("NINEGRID_SESSION_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing session secret in production")
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("NINEGRID_ENV", "dev")
	t.Setenv("NINEGRID_PORT", "99999")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestLoadDerivesCallbackURLFromPort(t *testing.T) {
	t.Setenv("NINEGRID_ENV", "dev")
	t.Setenv("NINEGRID_PORT", "9001")
	t.Setenv("GITHUB_CALLBACK_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.GitHubCallbackURL != "http://localhost:9001/auth/github/callback" {
		t.Fatalf("unexpected callback url %q", cfg.Auth.GitHubCallbackURL)
	}
}

func TestLoadClampsDebugLogCap(t *testing.T) {
	t.Setenv("NINEGRID_ENV", "dev")
	t.Setenv("NINEGRID_DEBUG_LOG_CAP", "999999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Debug.LogCap != 10000 {
		t.Fatalf("expected cap clamped to 10000, got %d", cfg.Debug.LogCap)
	}
}

func TestLoadStorageOverrides(t *testing.T) {
	t.Setenv("NINEGRID_ENV", "dev")
	t.Setenv("NINEGRID_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("NINEGRID_S3_BUCKET", "pics")
	t.Setenv("NINEGRID_S3_PUBLIC_URL", "https://cdn.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Storage.Endpoint != "http://localhost:9000" {
		t.Fatalf("unexpected endpoint %q", cfg.Storage.Endpoint)
	}
	if cfg.Storage.Bucket != "pics" {
		t.Fatalf("unexpected bucket %q", cfg.Storage.Bucket)
	}
	if cfg.Storage.PublicBaseURL != "https://cdn.example.com" {
		t.Fatalf("unexpected public base url %q", cfg.Storage.PublicBaseURL)
	}
}
