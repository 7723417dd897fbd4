// Package config loads the confidence policy for a run: the versioned
// manifest of scoring thresholds, from static defaults, a YAML policy file,
// and environment overrides, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/MichaelBlackwell/BidFoundry-sub002/pkg/scoring"
)

// PolicyManifest is the versioned threshold policy for a run.
type PolicyManifest struct {
	Version    string             `yaml:"version" json:"version"`
	Name       string             `yaml:"name,omitempty" json:"name,omitempty"`
	Thresholds scoring.Thresholds `yaml:"thresholds" json:"thresholds"`
}

// DefaultManifest returns the built-in policy.
func DefaultManifest() *PolicyManifest {
	return &PolicyManifest{
		Version:    "1.0.0",
		Name:       "default",
		Thresholds: *scoring.DefaultThresholds(),
	}
}

// Validate checks the manifest version and threshold constants.
func (m *PolicyManifest) Validate() error {
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("policy version %q is not semver: %w", m.Version, err)
	}
	if err := m.Thresholds.Validate(); err != nil {
		return fmt.Errorf("policy %q: %w", m.Name, err)
	}
	return nil
}

// LoadManifest reads and validates a YAML policy file. Fields the file
// omits keep their default values.
func LoadManifest(path string) (*PolicyManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}

	m := DefaultManifest()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// envOverrides maps environment variables onto threshold fields.
var envOverrides = []struct {
	name  string
	field func(*scoring.Thresholds) *float64
}{
	{"CONFIDENCE_BASE_SCORE", func(t *scoring.Thresholds) *float64 { return &t.BaseScore }},
	{"CONFIDENCE_APPROVAL_THRESHOLD", func(t *scoring.Thresholds) *float64 { return &t.ApprovalThreshold }},
	{"CONFIDENCE_HUMAN_REVIEW_THRESHOLD", func(t *scoring.Thresholds) *float64 { return &t.HumanReviewThreshold }},
	{"CONFIDENCE_CRITICAL_HALT_THRESHOLD", func(t *scoring.Thresholds) *float64 { return &t.CriticalHaltThreshold }},
	{"CONFIDENCE_MIN_SECTION_SCORE", func(t *scoring.Thresholds) *float64 { return &t.MinSectionScore }},
	{"CONFIDENCE_CRITICAL_PENALTY", func(t *scoring.Thresholds) *float64 { return &t.CriticalCritiquePenalty }},
	{"CONFIDENCE_MAJOR_PENALTY", func(t *scoring.Thresholds) *float64 { return &t.MajorCritiquePenalty }},
	{"CONFIDENCE_MINOR_PENALTY", func(t *scoring.Thresholds) *float64 { return &t.MinorCritiquePenalty }},
	{"CONFIDENCE_ACCEPTED_BONUS", func(t *scoring.Thresholds) *float64 { return &t.AcceptedResolutionBonus }},
	{"CONFIDENCE_REBUTTED_BONUS", func(t *scoring.Thresholds) *float64 { return &t.RebuttedResolutionBonus }},
}

// ApplyEnv overlays environment-variable overrides onto the manifest and
// revalidates. Unset variables leave their fields untouched.
func (m *PolicyManifest) ApplyEnv() error {
	for _, o := range envOverrides {
		raw := os.Getenv(o.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s=%q is not numeric: %w", o.name, raw, err)
		}
		*o.field(&m.Thresholds) = v
	}
	return m.Validate()
}

// Load resolves the effective policy: defaults, then the optional policy
// file, then environment overrides.
func Load(path string) (*PolicyManifest, error) {
	m := DefaultManifest()
	if path != "" {
		loaded, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		m = loaded
	}
	if err := m.ApplyEnv(); err != nil {
		return nil, err
	}
	return m, nil
}
