// Command piqi runs the HL7v2 -> FHIR -> PIQI batch pipeline: convert one
// or more HL7 files into FHIR bundles, score each against a PIQI profile,
// annotate, and optionally push to a remote FHIR server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/piqitt/piqi/internal/config"
	"github.com/piqitt/piqi/internal/fhirclient"
	"github.com/piqitt/piqi/internal/fhirconv"
	"github.com/piqitt/piqi/internal/pipeline"
	"github.com/piqitt/piqi/internal/piqi/eval"
	"github.com/piqitt/piqi/internal/piqi/profile"
	"github.com/piqitt/piqi/internal/piqi/sam"
	"github.com/piqitt/piqi/internal/platform/fhir"
	"github.com/piqitt/piqi/internal/refdata"
	"github.com/piqitt/piqi/internal/summary"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "piqi",
		Short: "HL7v2 -> FHIR -> PIQI data quality pipeline",
	}

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(summarizeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func processCmd() *cobra.Command {
	var (
		samPath          string
		profilePaths     []string
		profileName      string
		plausibilityPath string
		loincPath        string
		cptPath          string
		outBundles       string
		outScores        string
		outAnnotated     string
		outSummaryCSV    string
		push             bool
	)

	cmd := &cobra.Command{
		Use:   "process [hl7-files...]",
		Short: "Convert, score, and annotate one or more HL7v2 files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			refDir := cfg.RefDir
			if loincPath == "" && refDir != "" {
				loincPath = refDir + "/loinc.csv"
			}
			if cptPath == "" && refDir != "" {
				cptPath = refDir + "/cpt.csv"
			}
			if plausibilityPath == "" && refDir != "" {
				plausibilityPath = refDir + "/plausibility.yaml"
			}

			library, err := profile.LoadLibrary(samPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			profiles, err := profile.LoadProfiles(profilePaths)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			prof, ok := profiles[profileName]
			if !ok {
				return fmt.Errorf("config error: unknown profile %q", profileName)
			}

			loincCodes, err := refdata.LoadLOINCCodes(loincPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			cptCodes, err := refdata.LoadCPTCodes(cptPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			plausibility, err := refdata.LoadPlausibilityYAML(plausibilityPath)
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			registry := sam.NewRegistry(plausibility, map[string]map[string]bool{
				"LOINC": loincCodes,
				"CPT":   cptCodes,
			})
			evaluator := eval.New(registry, library)

			var client *fhirclient.Client
			if push {
				if !cfg.PushEnabled() {
					return fmt.Errorf("config error: --push requires PIQI_FHIR_BASE")
				}
				client = fhirclient.New(cfg.FHIRBase, fhirclient.Auth{
					BasicUser: cfg.FHIRUser,
					BasicPass: cfg.FHIRPass,
				})
			}

			pl := &pipeline.Pipeline{
				Endpoints: fhirconv.Endpoints{
					Source:      orDefault(cfg.SrcEndpoint, "urn:piqitt:local"),
					Destination: cfg.DstEndpoint,
				},
				Evaluator:   evaluator,
				Profile:     prof,
				ProfileName: profileName,
				FHIRClient:  client,
				Logger:      logger,
			}

			results, err := pl.Run(context.Background(), args)
			if err != nil {
				return fmt.Errorf("pipeline run: %w", err)
			}

			var bundles []*fhir.Bundle
			var annotated []*fhir.Bundle
			var records []summary.ScoreRecord
			messageCount := 0

			for _, fr := range results {
				if fr.ReadErr != nil {
					return fmt.Errorf("unrecoverable: %w", fr.ReadErr)
				}
				for _, m := range fr.Messages {
					if m.ParseErr != nil {
						continue
					}
					bundles = append(bundles, m.Bundle)
					annotated = append(annotated, m.Annotated)
					records = append(records, summary.ScoreRecord{
						Result:      m.Score,
						SourceFile:  m.SourceFile,
						SourceIndex: m.SourceIndex,
						HL7MsgType:  m.MsgType,
						ProfileName: profileName,
					})
					messageCount++
				}
			}

			if err := writeNDJSONBundles(outBundles, bundles); err != nil {
				return err
			}
			if err := writeNDJSONScores(outScores, records); err != nil {
				return err
			}
			if err := writeNDJSONBundles(outAnnotated, annotated); err != nil {
				return err
			}
			if outSummaryCSV != "" {
				if err := ensureParentDir(outSummaryCSV); err != nil {
					return err
				}
				f, err := os.Create(outSummaryCSV)
				if err != nil {
					return fmt.Errorf("create summary csv: %w", err)
				}
				defer f.Close()
				if err := summary.WriteCSV(f, summary.Summarize(records)); err != nil {
					return err
				}
			}

			fmt.Printf("[OK] messages=%d out_bundles=%s out_scores=%s out_annotated=%s pushed=%v\n",
				messageCount, outBundles, outScores, outAnnotated, push)
			return nil
		},
	}

	cmd.Flags().StringVar(&samPath, "sam", "", "SAM library YAML path (required)")
	cmd.Flags().StringSliceVar(&profilePaths, "profile-file", nil, "Profile YAML path(s) (required, repeatable)")
	cmd.Flags().StringVar(&profileName, "profile", "", "Profile name to evaluate against (required)")
	cmd.Flags().StringVar(&plausibilityPath, "plausibility", "", "Plausibility config YAML (optional)")
	cmd.Flags().StringVar(&loincPath, "loinc", "", "LOINC code CSV (optional)")
	cmd.Flags().StringVar(&cptPath, "cpt", "", "CPT code CSV (optional)")
	cmd.Flags().StringVar(&outBundles, "out-bundles", "out/bundles.ndjson", "Raw bundle NDJSON output path")
	cmd.Flags().StringVar(&outScores, "out-scores", "out/scores.ndjson", "PIQI score NDJSON output path")
	cmd.Flags().StringVar(&outAnnotated, "out-annotated", "out/annotated.ndjson", "Annotated bundle NDJSON output path")
	cmd.Flags().StringVar(&outSummaryCSV, "out-summary-csv", "", "Optional CSV summary output path")
	cmd.Flags().BoolVar(&push, "push", false, "Push annotated bundles to the configured FHIR server")

	_ = cmd.MarkFlagRequired("sam")
	_ = cmd.MarkFlagRequired("profile-file")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func summarizeCmd() *cobra.Command {
	var inPath, outCSV string

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize a PIQI score NDJSON stream into a CSV rollup",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("unrecoverable: read %s: %w", inPath, err)
			}

			var records []summary.ScoreRecord
			for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
				if strings.TrimSpace(line) == "" {
					continue
				}
				var r summary.ScoreRecord
				if err := json.Unmarshal([]byte(line), &r); err != nil {
					return fmt.Errorf("unrecoverable: parse score record: %w", err)
				}
				records = append(records, r)
			}

			if err := ensureParentDir(outCSV); err != nil {
				return err
			}
			f, err := os.Create(outCSV)
			if err != nil {
				return fmt.Errorf("create %s: %w", outCSV, err)
			}
			defer f.Close()

			rows := summary.Summarize(records)
			if err := summary.WriteCSV(f, rows); err != nil {
				return err
			}

			fmt.Printf("[OK] input_rows=%d summary_rows=%d out_csv=%s\n", len(records), len(rows), outCSV)
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "out/scores.ndjson", "Input PIQI score NDJSON")
	cmd.Flags().StringVar(&outCSV, "out-csv", "out/summary.csv", "Output summary CSV")

	return cmd
}

func writeNDJSONBundles(path string, bundles []*fhir.Bundle) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, b := range bundles {
		if err := enc.Encode(b); err != nil {
			return fmt.Errorf("encode bundle: %w", err)
		}
	}
	return nil
}

func writeNDJSONScores(path string, records []summary.ScoreRecord) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode score: %w", err)
		}
	}
	return nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// ensureParentDir creates an output file's parent directory (e.g. the
// default "out/" of --out-bundles/--out-scores/--out-annotated) if it
// doesn't already exist.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return nil
}
