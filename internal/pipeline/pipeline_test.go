package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piqitt/piqi/internal/fhirconv"
	"github.com/piqitt/piqi/internal/piqi/eval"
	"github.com/piqitt/piqi/internal/piqi/profile"
	"github.com/piqitt/piqi/internal/piqi/sam"
)

const sampleADT = "MSH|^~\\&|SendingApp|SendingFac|ReceivingApp|ReceivingFac|20240115143025||ADT^A01|MSG00001|P|2.5.1\rPID|1||MRN12345^^^MRNAuth||Doe^John||19800515|M\rPV1|1|I|ICU^101^A"

func writeHL7File(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testPipeline() *Pipeline {
	registry := sam.NewRegistry(nil, nil)
	library := profile.Library{
		"Attr_IsPopulated": profile.SamSpec{Mnemonic: "Attr_IsPopulated", Dimension: "completeness", EntityType: "any"},
	}
	evaluator := eval.New(registry, library)
	prof := profile.Profile{
		Name: "basic",
		Steps: []profile.Step{
			{ID: "s1", Resource: "Patient", Path: "gender", SAM: "Attr_IsPopulated", Effect: profile.EffectScoring, Weight: 1},
		},
	}

	return &Pipeline{
		Endpoints:   fhirconv.Endpoints{Source: "urn:piqi:src"},
		Evaluator:   evaluator,
		Profile:     prof,
		ProfileName: "basic",
		Logger:      zerolog.Nop(),
	}
}

func TestRun_SingleFileSingleMessage(t *testing.T) {
	path := writeHL7File(t, "msg1.hl7", sampleADT)
	pl := testPipeline()

	results, err := pl.Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Nil(t, results[0].ReadErr)
	require.Len(t, results[0].Messages, 1)

	msg := results[0].Messages[0]
	require.Nil(t, msg.ParseErr)
	assert.Equal(t, "ADT^A01", msg.MsgType)
	require.NotNil(t, msg.Bundle)
	require.NotNil(t, msg.Annotated)
	assert.Greater(t, len(msg.Annotated.Entry), len(msg.Bundle.Entry))
	assert.Equal(t, 1, msg.Score.Denominator)
}

func TestRun_PreservesFileOrder(t *testing.T) {
	paths := make([]string, 5)
	for i := 0; i < 5; i++ {
		paths[i] = writeHL7File(t, "msg"+string(rune('a'+i))+".hl7", sampleADT)
	}
	pl := testPipeline()

	results, err := pl.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
		assert.Equal(t, i, r.Index)
	}
}

func TestRun_UnreadableFileReportsReadErr(t *testing.T) {
	pl := testPipeline()
	results, err := pl.Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.hl7")})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].ReadErr)
}

func TestRun_MultipleMessagesInOneFile(t *testing.T) {
	content := sampleADT + "\n" + sampleADT
	path := writeHL7File(t, "multi.hl7", content)
	pl := testPipeline()

	results, err := pl.Run(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, results[0].Messages, 2)
	assert.Equal(t, 0, results[0].Messages[0].SourceIndex)
	assert.Equal(t, 1, results[0].Messages[1].SourceIndex)
}
