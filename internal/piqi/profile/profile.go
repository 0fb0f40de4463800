// Package profile loads the PIQI SAM library and evaluation profiles from
// their declarative YAML documents (spec §4.G): unmarshal first, then fill
// in defaults for absent keys explicitly.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SamSpec is one SAM's registry metadata as declared in the library.
type SamSpec struct {
	Mnemonic     string                 `yaml:"mnemonic"`
	Dimension    string                 `yaml:"dimension"`
	EntityType   string                 `yaml:"entity_type"`
	Prereq       string                 `yaml:"prerequisite"`
	ExecType     string                 `yaml:"exec_type"`
	ParamsSchema map[string]interface{} `yaml:"params_schema"`
}

// Condition is a step's optional guard: a SAM that must PASS against the
// step's own path before the step contributes anything.
type Condition struct {
	SAM    string                 `yaml:"sam"`
	Params map[string]interface{} `yaml:"params"`
}

// Step is one ordered evaluation step within a profile.
type Step struct {
	ID        string                 `yaml:"id"`
	Resource  string                 `yaml:"resource"`
	Path      string                 `yaml:"path"`
	SAM       string                 `yaml:"sam"`
	Params    map[string]interface{} `yaml:"params"`
	Effect    string                 `yaml:"effect"`
	Weight    float64                `yaml:"weight"`
	Critical  bool                   `yaml:"critical"`
	Condition *Condition             `yaml:"condition"`
}

// rawStep mirrors Step but keeps Effect/Weight as pointers so LoadProfiles
// can tell "absent" (apply the default) apart from an explicit zero value
// (e.g. weight: 0 on a critical-only step, per the spec's boundary case).
type rawStep struct {
	ID        string                 `yaml:"id"`
	Resource  string                 `yaml:"resource"`
	Path      string                 `yaml:"path"`
	SAM       string                 `yaml:"sam"`
	Params    map[string]interface{} `yaml:"params"`
	Effect    *string                `yaml:"effect"`
	Weight    *float64               `yaml:"weight"`
	Critical  bool                   `yaml:"critical"`
	Condition *Condition             `yaml:"condition"`
}

const (
	EffectScoring       = "Scoring"
	EffectInformational = "Informational"

	defaultExecType = "Primitive_Logic"
	defaultWeight   = 1.0
)

// Library is the mnemonic -> SamSpec table loaded from a SAM library
// document.
type Library map[string]SamSpec

// Profile is a named, ordered list of evaluation steps.
type Profile struct {
	Name  string
	Steps []Step
}

type samLibraryDoc struct {
	Sams []SamSpec `yaml:"sams"`
}

// LoadLibrary parses a SAM library YAML document. Duplicate mnemonics
// within the document silently overwrite the earlier entry (the spec marks
// this behavior undefined; see DESIGN.md's Open Question (b) decision).
func LoadLibrary(path string) (Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read SAM library %s: %w", path, err)
	}
	var doc samLibraryDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("profile: parse SAM library %s: %w", path, err)
	}

	lib := Library{}
	for _, s := range doc.Sams {
		if s.ExecType == "" {
			s.ExecType = defaultExecType
		}
		lib[s.Mnemonic] = s
	}
	return lib, nil
}

type profileDoc struct {
	Profile struct {
		Name  string    `yaml:"name"`
		Steps []rawStep `yaml:"steps"`
	} `yaml:"profile"`
}

// LoadProfiles parses one profile per path and returns them keyed by
// profile name.
func LoadProfiles(paths []string) (map[string]Profile, error) {
	out := map[string]Profile{}
	for _, p := range paths {
		prof, err := loadProfile(p)
		if err != nil {
			return nil, err
		}
		out[prof.Name] = prof
	}
	return out, nil
}

func loadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: read profile %s: %w", path, err)
	}
	var doc profileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Profile{}, fmt.Errorf("profile: parse profile %s: %w", path, err)
	}

	steps := make([]Step, 0, len(doc.Profile.Steps))
	for _, s := range doc.Profile.Steps {
		effect := EffectScoring
		if s.Effect != nil && *s.Effect != "" {
			effect = *s.Effect
		}
		weight := defaultWeight
		if s.Weight != nil {
			weight = *s.Weight
		}
		steps = append(steps, Step{
			ID:        s.ID,
			Resource:  s.Resource,
			Path:      s.Path,
			SAM:       s.SAM,
			Params:    s.Params,
			Effect:    effect,
			Weight:    weight,
			Critical:  s.Critical,
			Condition: s.Condition,
		})
	}

	return Profile{Name: doc.Profile.Name, Steps: steps}, nil
}
