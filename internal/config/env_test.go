package config

import (
	"testing"
)

func TestLoadDefaultsToFastMode(t *testing.T) {
	t.Setenv("CRAWL_MODE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeFast {
		t.Fatalf("expected default mode fast, got %v", cfg.Mode)
	}
	if cfg.GlobalConcurrency != 8 {
		t.Fatalf("expected default global concurrency 8, got %d", cfg.GlobalConcurrency)
	}
}

func TestLoadReadsCrawlModeFromEnv(t *testing.T) {
	t.Setenv("CRAWL_MODE", "deep")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDeep {
		t.Fatalf("expected mode deep, got %v", cfg.Mode)
	}
}

func TestLoadParsesSSLInsecureAllowlist(t *testing.T) {
	t.Setenv("CRAWL_SSL_INSECURE_ALLOWLIST", "ssl.ratsinfo-online.net, ssl.example.de")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.SSLInsecureAllowlist) != 2 {
		t.Fatalf("expected 2 allowlisted hosts, got %v", cfg.SSLInsecureAllowlist)
	}
	if cfg.SSLInsecureAllowlist[0] != "ssl.ratsinfo-online.net" {
		t.Fatalf("expected trimmed host, got %q", cfg.SSLInsecureAllowlist[0])
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	t.Setenv("CRAWL_MODE", "slow")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for an invalid CRAWL_MODE")
	}
}

func TestLoadRejectsNonPositiveConcurrency(t *testing.T) {
	t.Setenv("CRAWL_GLOBAL_CONCURRENCY", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for non-positive CRAWL_GLOBAL_CONCURRENCY")
	}
}

func TestTimeoutConvertsSecondsToDuration(t *testing.T) {
	t.Setenv("CRAWL_TIMEOUT_S", "45")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Timeout().Seconds() != 45 {
		t.Fatalf("expected 45s timeout, got %v", cfg.Timeout())
	}
}
