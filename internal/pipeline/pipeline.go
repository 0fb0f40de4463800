// Package pipeline implements the orchestrator: for each input file, split
// into HL7 messages, convert each to a FHIR bundle, evaluate it against a
// PIQI profile, annotate a clone with the scorecard Observation, and
// optionally push the annotated bundle to a remote FHIR server. Per spec
// §5, each message's conversion/evaluation/annotation chain is independent
// and shares no mutable state with any other message.
package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/piqitt/piqi/internal/fhirclient"
	"github.com/piqitt/piqi/internal/fhirconv"
	"github.com/piqitt/piqi/internal/hl7v2"
	"github.com/piqitt/piqi/internal/piqi/annotate"
	"github.com/piqitt/piqi/internal/piqi/eval"
	"github.com/piqitt/piqi/internal/piqi/profile"
	"github.com/piqitt/piqi/internal/platform/fhir"
)

// MessageResult is one message's full pipeline outcome.
type MessageResult struct {
	SourceFile  string
	SourceIndex int
	MsgType     string
	Bundle      *fhir.Bundle
	Score       eval.Result
	Annotated   *fhir.Bundle
	ParseErr    error
}

// Pipeline wires together the converter, evaluator, and optional FHIR push
// client. It holds no per-run mutable state, so a single instance safely
// serves concurrent file-level goroutines.
type Pipeline struct {
	Endpoints   fhirconv.Endpoints
	Evaluator   *eval.Evaluator
	Profile     profile.Profile
	ProfileName string
	FHIRClient  *fhirclient.Client // nil disables upload
	Logger      zerolog.Logger
	// MaxConcurrentFiles bounds the errgroup fan-out across files; message
	// order within a file, and file order in the final result slice, are
	// always preserved regardless of this value.
	MaxConcurrentFiles int
}

// FileResult is the outcome of processing a single input file, keyed by its
// position among the files passed to Run so the caller can reassemble
// deterministic, input-ordered output streams.
type FileResult struct {
	Path     string
	Index    int
	Messages []MessageResult
	ReadErr  error // unrecoverable: file unreadable
}

// Run processes files concurrently (bounded by MaxConcurrentFiles), one
// goroutine per file, but returns results ordered by input file position
// with message order preserved within each file.
func (p *Pipeline) Run(ctx context.Context, files []string) ([]FileResult, error) {
	results := make([]FileResult, len(files))

	limit := p.MaxConcurrentFiles
	if limit <= 0 {
		limit = 4
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for i, path := range files {
		i, path := i, path
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}
			results[i] = p.processFile(path, i)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: run: %w", err)
	}
	return results, nil
}

func (p *Pipeline) processFile(path string, index int) FileResult {
	raw, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Index: index, ReadErr: fmt.Errorf("pipeline: read %s: %w", path, err)}
	}

	blocks := hl7v2.SplitMessages(decodeUTF8(raw))

	messages := make([]MessageResult, 0, len(blocks))
	for i, block := range blocks {
		messages = append(messages, p.processMessage(path, i, block))
	}

	return FileResult{Path: path, Index: index, Messages: messages}
}

func (p *Pipeline) processMessage(sourceFile string, index int, raw string) MessageResult {
	msg, err := hl7v2.Parse([]byte(raw))
	if err != nil {
		p.Logger.Warn().Err(err).Str("file", sourceFile).Int("index", index).Msg("hl7 parse error; skipping message")
		return MessageResult{SourceFile: sourceFile, SourceIndex: index, ParseErr: err}
	}

	converted := fhirconv.Convert(msg, p.Endpoints)
	tagBundle(converted.Bundle, sourceFile, index, converted.MsgType)

	score := p.Evaluator.Evaluate(converted.Bundle, p.Profile)

	clone, err := converted.Bundle.Clone()
	if err != nil {
		p.Logger.Error().Err(err).Str("file", sourceFile).Int("index", index).Msg("failed to clone bundle for annotation")
		clone = converted.Bundle
	}
	annotate.Annotate(clone, score, p.ProfileName)

	if p.FHIRClient != nil {
		if _, err := p.FHIRClient.Push(context.Background(), clone); err != nil {
			p.Logger.Error().Err(err).Str("file", sourceFile).Int("index", index).Msg("fhir push failed")
		}
	}

	return MessageResult{
		SourceFile:  sourceFile,
		SourceIndex: index,
		MsgType:     converted.MsgType,
		Bundle:      converted.Bundle,
		Score:       score,
		Annotated:   clone,
	}
}

// tagBundle stamps the bundle's meta.tag with ingestion provenance, per
// spec §4.J.
func tagBundle(bundle *fhir.Bundle, sourceFile string, index int, msgType string) {
	bundle.Meta = &fhir.BundleMeta{
		Tag: []fhir.Coding{
			{System: "source-hl7-file", Code: sourceFile},
			{System: "source-hl7-index", Code: fmt.Sprintf("%d", index)},
			{System: "hl7-msg-type", Code: msgType},
		},
	}
}

// decodeUTF8 replaces invalid byte sequences with the Unicode replacement
// character, matching Python's decode(..., errors="replace") used by the
// reference pipeline's file reader.
func decodeUTF8(raw []byte) string {
	return string([]rune(string(raw)))
}
