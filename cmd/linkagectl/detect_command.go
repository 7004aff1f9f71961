package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"linkage/internal/explain"
	"linkage/internal/match"
	"linkage/internal/policy"
)

// detectInput is the run document. It mirrors the server's detect request
// minus the tenant scope: offline runs always use profile defaults.
type detectInput struct {
	Profile       string      `json:"profile"`
	Anchor        recordDoc   `json:"anchor"`
	Pool          []recordDoc `json:"pool"`
	MinConfidence *float64    `json:"min_confidence,omitempty"`
	TimeoutMS     int         `json:"timeout_ms,omitempty"`
}

type recordDoc struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// detectReport is the JSON output shape. Field names line up with the
// server's detect response so downstream tooling can consume either.
type detectReport struct {
	Profile     string              `json:"profile"`
	Thresholds  policy.ThresholdSet `json:"thresholds"`
	Suggestions []suggestionReport  `json:"suggestions"`
	Dropped     []droppedReport     `json:"dropped,omitempty"`
	Evaluated   int                 `json:"evaluated"`
	Partial     bool                `json:"partial"`
}

type suggestionReport struct {
	CandidateID  string                `json:"candidate_id"`
	PoolPosition int                   `json:"pool_position"`
	Confidence   float64               `json:"confidence"`
	Decision     policy.Decision       `json:"decision"`
	Factors      []match.FactorOutcome `json:"factors"`
	Explanation  explain.Explanation   `json:"explanation"`
}

type droppedReport struct {
	CandidateID  string `json:"candidate_id"`
	PoolPosition int    `json:"pool_position"`
	Stage        string `json:"stage"`
	Reason       string `json:"reason"`
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var (
		profileID     string
		minConfidence float64
		timeout       time.Duration
		jsonOut       bool
	)

	cmd := &cobra.Command{
		Use:   "detect <input.json>",
		Short: "Run link detection for an anchor against a candidate pool",
		Long: `Detect reads a run document, scores every pool candidate against the
anchor, and classifies each suggestion with the profile's default
thresholds. Pass "-" to read the document from stdin.

The document carries the anchor, the pool, and optionally the profile,
suggestion floor, and timeout; flags override the document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readDetectInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("profile") {
				input.Profile = profileID
			}
			if input.Profile == "" {
				return fmt.Errorf("no profile: set one in the document or pass --profile")
			}
			engine, err := ctx.engineFor(input.Profile)
			if err != nil {
				return err
			}

			floor := engine.MinSuggest()
			if input.MinConfidence != nil {
				floor = *input.MinConfidence
			}
			if cmd.Flags().Changed("min-confidence") {
				floor = minConfidence
			}

			runTimeout := time.Duration(input.TimeoutMS) * time.Millisecond
			if cmd.Flags().Changed("timeout") {
				runTimeout = timeout
			}

			pool := make([]match.Entity, 0, len(input.Pool))
			for _, doc := range input.Pool {
				pool = append(pool, match.NewRecord(doc.ID, doc.Fields))
			}

			result, err := engine.Detector.Detect(cmd.Context(), match.DetectRequest{
				Anchor:        match.NewRecord(input.Anchor.ID, input.Anchor.Fields),
				Pool:          pool,
				MinConfidence: floor,
				Timeout:       runTimeout,
			})
			if err != nil {
				return err
			}

			report := buildDetectReport(input.Profile, engine.DefaultThresholds(), result)

			if jsonOut {
				return writeJSON(cmd, report)
			}
			printDetectReport(cmd.OutOrStdout(), report, len(input.Pool))
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "Profile to detect with (overrides the document)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Suggestion floor (overrides the document and the profile default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall run budget, e.g. 2s (overrides the document)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of tables")

	return cmd
}

func readDetectInput(path string, stdin io.Reader) (*detectInput, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open run document: %w", err)
		}
		defer f.Close()
		r = f
	}

	var input detectInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return nil, fmt.Errorf("parse run document: %w", err)
	}
	return &input, nil
}

func buildDetectReport(profileID string, set policy.ThresholdSet, result *match.Result) detectReport {
	report := detectReport{
		Profile:     profileID,
		Thresholds:  set,
		Suggestions: make([]suggestionReport, 0, len(result.Suggestions)),
		Evaluated:   result.Evaluated,
		Partial:     result.Partial,
	}
	for _, sug := range result.Suggestions {
		decision := set.Classify(sug.Confidence)
		exp := explain.Explain(match.Score{Confidence: sug.Confidence, Factors: sug.Factors}, decision, set)
		exp.Factors = nil // the breakdown rides once at the suggestion level
		report.Suggestions = append(report.Suggestions, suggestionReport{
			CandidateID:  sug.CandidateID,
			PoolPosition: sug.PoolPosition,
			Confidence:   sug.Confidence,
			Decision:     decision,
			Factors:      sug.Factors,
			Explanation:  exp,
		})
	}
	for _, drop := range result.Dropped {
		report.Dropped = append(report.Dropped, droppedReport{
			CandidateID:  drop.CandidateID,
			PoolPosition: drop.PoolPosition,
			Stage:        string(drop.Stage),
			Reason:       drop.Reason,
		})
	}
	return report
}

func printDetectReport(out io.Writer, report detectReport, poolSize int) {
	fmt.Fprintf(out, "Evaluated %d of %d candidates, %d suggestions, %d dropped\n",
		report.Evaluated, poolSize, len(report.Suggestions), len(report.Dropped))
	if report.Partial {
		fmt.Fprintln(out, "Run hit its time budget; results cover the candidates evaluated so far.")
	}

	if len(report.Suggestions) > 0 {
		rows := make([][]string, 0, len(report.Suggestions))
		for i, sug := range report.Suggestions {
			topFactor := ""
			if sug.Explanation.TopFactor != "" {
				topFactor = fmt.Sprintf("%s (%s)", sug.Explanation.TopFactor, formatScore(sug.Explanation.TopContribution))
			}
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				sug.CandidateID,
				strconv.Itoa(sug.PoolPosition),
				formatScore(sug.Confidence),
				string(sug.Decision),
				topFactor,
				sug.Explanation.RecommendedAction,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"#", "CANDIDATE", "POS", "CONFIDENCE", "DECISION", "TOP FACTOR", "ACTION"},
			rows, 1, 3, 4,
		))
	}

	if len(report.Dropped) > 0 {
		rows := make([][]string, 0, len(report.Dropped))
		for _, drop := range report.Dropped {
			rows = append(rows, []string{
				drop.CandidateID,
				strconv.Itoa(drop.PoolPosition),
				drop.Stage,
				drop.Reason,
			})
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"DROPPED", "POS", "STAGE", "REASON"},
			rows, 2,
		))
	}
}
