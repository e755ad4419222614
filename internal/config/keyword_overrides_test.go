package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bess-forensic/crawler/internal/keywords"
)

func TestApplyKeywordOverridesExtendsNegativeStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.toml")
	if err := os.WriteFile(path, []byte("negative_storage = [\"testwaermespeichersonderfall\"]\n"), 0o644); err != nil {
		t.Fatalf("write overrides file: %v", err)
	}

	before := keywords.NegativeStorage.Count("testwaermespeichersonderfall vorhanden")
	if before != 0 {
		t.Fatalf("expected term absent before override, got count %d", before)
	}

	if err := ApplyKeywordOverrides(path); err != nil {
		t.Fatalf("apply overrides: %v", err)
	}

	after := keywords.NegativeStorage.Count("testwaermespeichersonderfall vorhanden")
	if after != 1 {
		t.Fatalf("expected term matched after override, got count %d", after)
	}
}

func TestApplyKeywordOverridesIgnoresMissingFile(t *testing.T) {
	if err := ApplyKeywordOverrides(filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Fatalf("expected no error for a missing overrides file, got %v", err)
	}
}
