package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/bess-forensic/crawler/internal/keywords"
)

// KeywordOverrides is an operator-editable TOML file that appends ad-hoc
// terms to the negative-storage keyword set without a redeploy, grounded on
// the teacher's internal/formula package, which uses TOML for the same
// "operator edits a rule file, no code change" purpose.
type KeywordOverrides struct {
	NegativeStorage []string `toml:"negative_storage"`
}

// ApplyKeywordOverrides reads path (if it exists) and extends
// keywords.NegativeStorage in place. A missing file is not an error — the
// override file is optional, unlike the municipality seed file.
func ApplyKeywordOverrides(path string) error {
	var overrides KeywordOverrides
	meta, err := toml.DecodeFile(path, &overrides)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("parse keyword overrides %s: %w", path, err)
	}
	_ = meta // undecoded keys are ignored, not fatal: a typo'd key just has no effect

	keywords.NegativeStorage.AddTerms(overrides.NegativeStorage...)
	return nil
}
