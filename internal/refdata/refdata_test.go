package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLOINCCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loinc.csv")
	require.NoError(t, os.WriteFile(path, []byte("LOINC_NUM,COMPONENT\n718-7,Hemoglobin\n4544-3,Hematocrit\n"), 0o644))

	codes, err := LoadLOINCCodes(path)
	require.NoError(t, err)
	assert.True(t, codes["718-7"])
	assert.True(t, codes["4544-3"])
	assert.False(t, codes["999-9"])
}

func TestLoadCPTCodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpt.csv")
	require.NoError(t, os.WriteFile(path, []byte("cpt_code,description\n85025,CBC\n"), 0o644))

	codes, err := LoadCPTCodes(path)
	require.NoError(t, err)
	assert.True(t, codes["85025"])
}

func TestLoadLOINCCodes_MissingPathYieldsEmptySet(t *testing.T) {
	codes, err := LoadLOINCCodes("")
	require.NoError(t, err)
	assert.Empty(t, codes)

	codes, err = LoadLOINCCodes(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestLoadPlausibilityYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plausibility.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
by_loinc:
  "718-7":
    units: ["g/dL"]
    min: 0
    max: 25
by_class:
  HEM:
    units: ["g/dL"]
`), 0o644))

	cfg, err := LoadPlausibilityYAML(path)
	require.NoError(t, err)
	require.Contains(t, cfg.ByLOINC, "718-7")
	assert.Equal(t, []string{"g/dL"}, cfg.ByLOINC["718-7"].Units)
	require.NotNil(t, cfg.ByLOINC["718-7"].Max)
	assert.Equal(t, 25.0, *cfg.ByLOINC["718-7"].Max)
}

func TestLoadPlausibilityYAML_MissingPath(t *testing.T) {
	cfg, err := LoadPlausibilityYAML("")
	require.NoError(t, err)
	assert.Empty(t, cfg.ByLOINC)
	assert.Empty(t, cfg.ByClass)
}
