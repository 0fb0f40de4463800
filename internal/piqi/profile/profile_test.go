package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLibrary(t *testing.T) {
	path := writeTempFile(t, "sams.yaml", `
sams:
  - mnemonic: Attr_IsPopulated
    dimension: completeness
    entity_type: any
  - mnemonic: Observation_UnitAllowed
    dimension: plausibility
    entity_type: Observation
    exec_type: WholeResource_Logic
`)

	lib, err := LoadLibrary(path)
	require.NoError(t, err)
	require.Len(t, lib, 2)

	assert.Equal(t, "Primitive_Logic", lib["Attr_IsPopulated"].ExecType)
	assert.Equal(t, "WholeResource_Logic", lib["Observation_UnitAllowed"].ExecType)
}

func TestLoadLibrary_MissingFile(t *testing.T) {
	_, err := LoadLibrary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadProfiles_DefaultsAndExplicitWeightZero(t *testing.T) {
	path := writeTempFile(t, "profile.yaml", `
profile:
  name: basic
  steps:
    - id: step-1
      resource: Patient
      path: gender
      sam: Attr_IsPopulated
    - id: step-2
      resource: Observation
      path: value[x]
      sam: Observation_ValueWithinRange
      weight: 0
      critical: true
`)

	profiles, err := LoadProfiles([]string{path})
	require.NoError(t, err)
	require.Contains(t, profiles, "basic")

	prof := profiles["basic"]
	require.Len(t, prof.Steps, 2)

	assert.Equal(t, EffectScoring, prof.Steps[0].Effect)
	assert.Equal(t, 1.0, prof.Steps[0].Weight)

	assert.Equal(t, 0.0, prof.Steps[1].Weight)
	assert.True(t, prof.Steps[1].Critical)
}

func TestLoadProfiles_ExplicitEffectPreserved(t *testing.T) {
	path := writeTempFile(t, "profile.yaml", `
profile:
  name: informational
  steps:
    - id: step-1
      resource: Patient
      path: gender
      sam: Attr_IsPopulated
      effect: Informational
`)

	profiles, err := LoadProfiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, EffectInformational, profiles["informational"].Steps[0].Effect)
}
