// Package config resolves runtime configuration from the crawler's CRAWL_*
// environment variables (spec.md §6) over built-in defaults, using viper's
// env binding as the teacher's config does; no config.yaml file is read.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CrawlMode mirrors types.CrawlMode's two values without importing
// internal/types here, avoided the same way internal/httpclient's modeLike
// interface avoids it — config is loaded before the pipeline wiring decides
// which concrete mode type to construct.
type CrawlMode string

const (
	ModeFast CrawlMode = "fast"
	ModeDeep CrawlMode = "deep"
)

// Config is the resolved runtime configuration for one crawler process.
type Config struct {
	Mode                   CrawlMode
	GlobalConcurrency      int
	PerDomainConcurrency   int
	TimeoutSeconds         int
	Retries                int
	PDFMaxSizeMB           int
	CacheBase              string
	TextCacheBase          string
	StorageBasePath        string
	SSLInsecureAllowlist   []string
	AllowHTTPFallback      bool
	DatabaseURL            string
}

// defaults mirror spec.md §6's implied defaults: fast mode, conservative
// concurrency, 30s timeouts, 3 retries, no insecure allowlist, no HTTP
// fallback unless explicitly enabled.
func defaults() Config {
	return Config{
		Mode:                 ModeFast,
		GlobalConcurrency:    8,
		PerDomainConcurrency: 2,
		TimeoutSeconds:       30,
		Retries:              3,
		PDFMaxSizeMB:         50,
		CacheBase:            "./.cache",
		TextCacheBase:        "./.cache/pdf_text",
		StorageBasePath:      "./storage",
		SSLInsecureAllowlist: nil,
		AllowHTTPFallback:    false,
	}
}

// Load builds a Config from CRAWL_* / STORAGE_BASE_PATH / DATABASE_URL
// environment variables layered over the defaults, grounded on the
// teacher's viper-singleton env-binding idiom (internal/config/yaml_config.go's
// package-level `v *viper.Viper`) generalized from bd's flag-backed keys to
// this process's fixed env-var surface.
func Load() (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if mode := v.GetString("CRAWL_MODE"); mode != "" {
		cfg.Mode = CrawlMode(strings.ToLower(mode))
	}
	if v.IsSet("CRAWL_GLOBAL_CONCURRENCY") {
		cfg.GlobalConcurrency = v.GetInt("CRAWL_GLOBAL_CONCURRENCY")
	}
	if v.IsSet("CRAWL_PER_DOMAIN_CONCURRENCY") {
		cfg.PerDomainConcurrency = v.GetInt("CRAWL_PER_DOMAIN_CONCURRENCY")
	}
	if v.IsSet("CRAWL_TIMEOUT_S") {
		cfg.TimeoutSeconds = v.GetInt("CRAWL_TIMEOUT_S")
	}
	if v.IsSet("CRAWL_RETRIES") {
		cfg.Retries = v.GetInt("CRAWL_RETRIES")
	}
	if v.IsSet("CRAWL_PDF_MAX_SIZE_MB") {
		cfg.PDFMaxSizeMB = v.GetInt("CRAWL_PDF_MAX_SIZE_MB")
	}
	if v.IsSet("CRAWL_CACHE_BASE") {
		cfg.CacheBase = v.GetString("CRAWL_CACHE_BASE")
	}
	if v.IsSet("CRAWL_TEXT_CACHE_BASE") {
		cfg.TextCacheBase = v.GetString("CRAWL_TEXT_CACHE_BASE")
	}
	if v.IsSet("STORAGE_BASE_PATH") {
		cfg.StorageBasePath = v.GetString("STORAGE_BASE_PATH")
	}
	if v.IsSet("CRAWL_SSL_INSECURE_ALLOWLIST") {
		cfg.SSLInsecureAllowlist = splitNonEmpty(v.GetString("CRAWL_SSL_INSECURE_ALLOWLIST"), ",")
	}
	if v.IsSet("CRAWL_ALLOW_HTTP_FALLBACK") {
		cfg.AllowHTTPFallback = v.GetBool("CRAWL_ALLOW_HTTP_FALLBACK")
	}
	if v.IsSet("DATABASE_URL") {
		cfg.DatabaseURL = v.GetString("DATABASE_URL")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Mode != ModeFast && c.Mode != ModeDeep {
		return &InvalidConfigError{Field: "CRAWL_MODE", Reason: "must be fast or deep"}
	}
	if c.GlobalConcurrency <= 0 {
		return &InvalidConfigError{Field: "CRAWL_GLOBAL_CONCURRENCY", Reason: "must be positive"}
	}
	if c.PerDomainConcurrency <= 0 {
		return &InvalidConfigError{Field: "CRAWL_PER_DOMAIN_CONCURRENCY", Reason: "must be positive"}
	}
	return nil
}

// InvalidConfigError is returned so cmd/crawler can exit 1 with "config
// invalid" per spec.md §6's CLI exit-code contract.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Reason
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func splitNonEmpty(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
