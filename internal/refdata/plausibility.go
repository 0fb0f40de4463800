// Package refdata loads the terminology and plausibility reference data the
// PIQI SAM registry consults: LOINC/CPT code sets (CSV) and per-LOINC or
// per-class unit/range plausibility bounds (YAML). Loader behavior is
// pinned to the original Python pipeline's load_loinc_codes_from_csv,
// load_cpt_codes_from_csv, and load_plausibility_yaml.
package refdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlausibilityBounds is the allowed-unit/numeric-range record for one LOINC
// code or LOINC class.
type PlausibilityBounds struct {
	Units []string `yaml:"units"`
	Min   *float64 `yaml:"min"`
	Max   *float64 `yaml:"max"`
}

// Plausibility holds the by_loinc/by_class plausibility lookup tables.
type Plausibility struct {
	ByLOINC map[string]PlausibilityBounds `yaml:"by_loinc"`
	ByClass map[string]PlausibilityBounds `yaml:"by_class"`
}

// LoadPlausibilityYAML reads a plausibility config document. A missing path
// is not an error: it yields an empty (always-SKIP) table, matching the
// reference loader's behavior of degrading gracefully rather than failing
// the whole run over an optional file.
func LoadPlausibilityYAML(path string) (*Plausibility, error) {
	cfg := &Plausibility{ByLOINC: map[string]PlausibilityBounds{}, ByClass: map[string]PlausibilityBounds{}}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refdata: read plausibility config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("refdata: parse plausibility config %s: %w", path, err)
	}
	if cfg.ByLOINC == nil {
		cfg.ByLOINC = map[string]PlausibilityBounds{}
	}
	if cfg.ByClass == nil {
		cfg.ByClass = map[string]PlausibilityBounds{}
	}
	return cfg, nil
}
