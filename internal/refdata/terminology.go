package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// loincHeaderCandidates/cptHeaderCandidates name the columns the reference
// loaders recognize in common LOINC/CPT distributions; the first column
// name is used if none match.
var loincHeaderCandidates = map[string]bool{"loinc_num": true, "loinc": true, "code": true}
var cptHeaderCandidates = map[string]bool{"code": true, "cpt": true, "cpt code": true, "cpt_code": true}

// LoadLOINCCodes reads a LOINC code set from a comma-separated file,
// auto-detecting the code column by common header names. Other delimiters
// (e.g. tabs) are not split into columns. A missing path yields an empty
// set rather than an error, since the value-set is optional input.
func LoadLOINCCodes(path string) (map[string]bool, error) {
	return loadCodeColumn(path, loincHeaderCandidates)
}

// LoadCPTCodes reads a CPT code set from a CSV file the same way.
func LoadCPTCodes(path string) (map[string]bool, error) {
	return loadCodeColumn(path, cptHeaderCandidates)
}

func loadCodeColumn(path string, candidates map[string]bool) (map[string]bool, error) {
	codes := map[string]bool{}
	if path == "" {
		return codes, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return codes, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refdata: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return codes, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refdata: read header of %s: %w", path, err)
	}

	col := 0
	for i, h := range header {
		if candidates[strings.ToLower(strings.TrimSpace(h))] {
			col = i
			break
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("refdata: read row of %s: %w", path, err)
		}
		if col >= len(row) {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(row[col]))
		if code != "" {
			codes[code] = true
		}
	}
	return codes, nil
}
