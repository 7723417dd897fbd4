package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest()
	require.NoError(t, m.Validate())
	assert.Equal(t, "1.0.0", m.Version)
	assert.InDelta(t, 0.80, m.Thresholds.BaseScore, 1e-9)
	assert.InDelta(t, 0.15, m.Thresholds.CriticalCritiquePenalty, 1e-9)
}

func TestLoadManifestFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "2.1.0"
name: strict
thresholds:
  human_review_threshold: 0.80
  min_section_score: 0.70
`), 0o644))

	m, err := LoadManifest(path)
	require.NoError(t, err)

	assert.Equal(t, "2.1.0", m.Version)
	assert.Equal(t, "strict", m.Name)
	assert.InDelta(t, 0.80, m.Thresholds.HumanReviewThreshold, 1e-9)
	assert.InDelta(t, 0.70, m.Thresholds.MinSectionScore, 1e-9)
	// Omitted fields keep defaults.
	assert.InDelta(t, 0.15, m.Thresholds.CriticalCritiquePenalty, 1e-9)
}

func TestLoadManifestBadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`version: "latest"`), 0o644))

	_, err := LoadManifest(path)
	assert.ErrorContains(t, err, "not semver")
}

func TestLoadManifestBadThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1.0.0"
thresholds:
  base_score: 1.5
`), 0o644))

	_, err := LoadManifest(path)
	assert.ErrorContains(t, err, "base_score")
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CONFIDENCE_HUMAN_REVIEW_THRESHOLD", "0.75")
	t.Setenv("CONFIDENCE_CRITICAL_PENALTY", "0.20")

	m := DefaultManifest()
	require.NoError(t, m.ApplyEnv())

	assert.InDelta(t, 0.75, m.Thresholds.HumanReviewThreshold, 1e-9)
	assert.InDelta(t, 0.20, m.Thresholds.CriticalCritiquePenalty, 1e-9)
	// Untouched fields keep their values.
	assert.InDelta(t, 0.60, m.Thresholds.MinSectionScore, 1e-9)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	t.Setenv("CONFIDENCE_BASE_SCORE", "high")

	m := DefaultManifest()
	assert.ErrorContains(t, m.ApplyEnv(), "not numeric")
}

func TestApplyEnvRevalidates(t *testing.T) {
	t.Setenv("CONFIDENCE_BASE_SCORE", "3.0")

	m := DefaultManifest()
	assert.Error(t, m.ApplyEnv())
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1.2.0"
thresholds:
  human_review_threshold: 0.80
`), 0o644))
	t.Setenv("CONFIDENCE_HUMAN_REVIEW_THRESHOLD", "0.90")

	m, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file.
	assert.InDelta(t, 0.90, m.Thresholds.HumanReviewThreshold, 1e-9)
	assert.Equal(t, "1.2.0", m.Version)
}
