package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piqitt/piqi/internal/piqi/eval"
	"github.com/piqitt/piqi/internal/piqi/sam"
)

func TestSummarize_CountsDetailsByStatus(t *testing.T) {
	idx := 66.67
	records := []ScoreRecord{
		{
			Result: eval.Result{
				PIQIIndex:            &idx,
				Numerator:            2,
				Denominator:          3,
				CriticalFailureCount: 1,
				Details: []eval.Detail{
					{Status: sam.Pass},
					{Status: sam.Fail, Severity: "critical"},
					{Status: sam.Skip},
				},
			},
			SourceFile:  "msg1.hl7",
			SourceIndex: 0,
			HL7MsgType:  "ORU^R01",
			ProfileName: "basic",
		},
	}

	rows := Summarize(records)
	require.Len(t, rows, 1)
	row := rows[0]

	assert.Equal(t, "msg1.hl7", row.SourceFile)
	assert.Equal(t, 1, row.DetailPass)
	assert.Equal(t, 1, row.DetailFail)
	assert.Equal(t, 1, row.DetailSkip)
	assert.Equal(t, 1, row.DetailCriticalFail)
	assert.InDelta(t, 66.67, row.PIQIIndex, 0.001)
}

func TestWriteCSV_HeaderAndRows(t *testing.T) {
	rows := []Row{
		{SourceFile: "msg1.hl7", HL7MsgType: "ORU^R01", ProfileName: "basic", PIQIIndex: 100, Numerator: 1, Denominator: 1},
	}

	var buf strings.Builder
	err := WriteCSV(&buf, rows)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "source_file,source_index,hl7_msg_type,profile_name")
	assert.Contains(t, out, "msg1.hl7")
	assert.Contains(t, out, "100.00")
}
