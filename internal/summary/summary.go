// Package summary derives a per-message rollup (PASS/FAIL/SKIP and critical
// failure counts) from PIQI score records, grounded on the reference
// pipeline's summarize_piqi_scores.py.
package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/piqitt/piqi/internal/piqi/eval"
	"github.com/piqitt/piqi/internal/piqi/sam"
)

// Row is one summarized message/bundle.
type Row struct {
	SourceFile         string  `json:"source_file"`
	SourceIndex        int     `json:"source_index"`
	HL7MsgType         string  `json:"hl7_msg_type"`
	ProfileName        string  `json:"profile_name"`
	PIQIIndex          float64 `json:"piqiIndex"`
	PIQIWeightedIndex  float64 `json:"piqiWeightedIndex"`
	Numerator          int     `json:"numerator"`
	Denominator        int     `json:"denominator"`
	CriticalFailures   int     `json:"criticalFailureCount"`
	DetailPass         int     `json:"detail_pass"`
	DetailFail         int     `json:"detail_fail"`
	DetailSkip         int     `json:"detail_skip"`
	DetailCriticalFail int     `json:"detail_critical_fail"`
}

// ScoreRecord is a scored message annotated with the orchestrator's trace
// fields (cmd/piqi fills these from each internal/pipeline MessageResult).
// The trace fields use the reference pipeline's underscore-prefixed keys
// (hl7_out_to_piqi.py's "_source_file"/"_source_index"/"_hl7_msg_type"/
// "_profile_name") so the scores NDJSON interoperates with
// summarize_piqi_scores.py.
type ScoreRecord struct {
	eval.Result
	SourceFile  string `json:"_source_file"`
	SourceIndex int    `json:"_source_index"`
	HL7MsgType  string `json:"_hl7_msg_type"`
	ProfileName string `json:"_profile_name"`
}

// Summarize reduces each score record's details into pass/fail/skip and
// critical-failure counts.
func Summarize(records []ScoreRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		pass, fail, skip, critFail := countDetails(r.Details)
		row := Row{
			SourceFile:         r.SourceFile,
			SourceIndex:        r.SourceIndex,
			HL7MsgType:         r.HL7MsgType,
			ProfileName:        r.ProfileName,
			Numerator:          r.Numerator,
			Denominator:        r.Denominator,
			CriticalFailures:   r.CriticalFailureCount,
			DetailPass:         pass,
			DetailFail:         fail,
			DetailSkip:         skip,
			DetailCriticalFail: critFail,
		}
		if r.PIQIIndex != nil {
			row.PIQIIndex = *r.PIQIIndex
		}
		if r.PIQIWeightedIndex != nil {
			row.PIQIWeightedIndex = *r.PIQIWeightedIndex
		}
		rows = append(rows, row)
	}
	return rows
}

func countDetails(details []eval.Detail) (pass, fail, skip, criticalFail int) {
	for _, d := range details {
		switch d.Status {
		case sam.Pass:
			pass++
		case sam.Fail:
			fail++
			if d.Severity == "critical" {
				criticalFail++
			}
		case sam.Skip:
			skip++
		}
	}
	return
}

// WriteCSV writes rows as a header + one row per message, matching the
// reference summarizer's column order.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"source_file", "source_index", "hl7_msg_type", "profile_name",
		"piqiIndex", "piqiWeightedIndex", "numerator", "denominator",
		"criticalFailureCount", "detail_pass", "detail_fail", "detail_skip",
		"detail_critical_fail",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("summary: write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.SourceFile,
			strconv.Itoa(r.SourceIndex),
			r.HL7MsgType,
			r.ProfileName,
			strconv.FormatFloat(r.PIQIIndex, 'f', 2, 64),
			strconv.FormatFloat(r.PIQIWeightedIndex, 'f', 2, 64),
			strconv.Itoa(r.Numerator),
			strconv.Itoa(r.Denominator),
			strconv.Itoa(r.CriticalFailures),
			strconv.Itoa(r.DetailPass),
			strconv.Itoa(r.DetailFail),
			strconv.Itoa(r.DetailSkip),
			strconv.Itoa(r.DetailCriticalFail),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("summary: write csv row: %w", err)
		}
	}
	return nil
}
