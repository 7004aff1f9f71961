package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"linkage/internal/explain"
	"linkage/internal/policy"
)

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var (
		profileID   string
		autoLink    float64
		autoSuggest float64
		manual      float64
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "classify <confidence>",
		Short: "Classify a confidence score against a threshold set",
		Long: `Classify maps a confidence value to its decision band and explains the
outcome. Thresholds come from a profile's defaults (--profile) or from an
explicit set (--auto-link, --auto-suggest, --manual), which is handy for
what-if tuning before an update request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confidence, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("parse confidence %q: %w", args[0], err)
			}
			if !(confidence >= 0 && confidence <= 1) {
				return fmt.Errorf("confidence %s is outside [0.0, 1.0]", args[0])
			}

			set, err := resolveThresholds(cmd, ctx, profileID, autoLink, autoSuggest, manual)
			if err != nil {
				return err
			}

			decision := set.Classify(confidence)
			rationale := explain.ExplainClassification(confidence, decision, set)

			if jsonOut {
				return writeJSON(cmd, rationale)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Decision:  %s\n", rationale.Decision)
			fmt.Fprintf(out, "Threshold: %s = %s\n", rationale.ThresholdUsed, formatScore(rationale.ThresholdValue))
			fmt.Fprintf(out, "Rationale: %s\n", rationale.Rationale)
			fmt.Fprintf(out, "Action:    %s\n", rationale.RecommendedAction)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "Profile whose default thresholds to classify against")
	cmd.Flags().Float64Var(&autoLink, "auto-link", 0, "Explicit auto_link floor")
	cmd.Flags().Float64Var(&autoSuggest, "auto-suggest", 0, "Explicit auto_suggest floor")
	cmd.Flags().Float64Var(&manual, "manual", 0, "Explicit manual review floor")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")

	return cmd
}

// resolveThresholds picks the threshold source: a profile's defaults or an
// explicit flag set, never both. Explicit sets are validated the same way an
// update request would be.
func resolveThresholds(cmd *cobra.Command, ctx *commandContext, profileID string, autoLink, autoSuggest, manual float64) (policy.ThresholdSet, error) {
	flags := cmd.Flags()
	explicit := flags.Changed("auto-link") || flags.Changed("auto-suggest") || flags.Changed("manual")

	switch {
	case explicit && profileID != "":
		return policy.ThresholdSet{}, fmt.Errorf("--profile and explicit thresholds are mutually exclusive")
	case explicit:
		if !flags.Changed("auto-link") || !flags.Changed("auto-suggest") || !flags.Changed("manual") {
			return policy.ThresholdSet{}, fmt.Errorf("explicit thresholds need all of --auto-link, --auto-suggest, --manual")
		}
		set := policy.ThresholdSet{AutoLink: autoLink, AutoSuggest: autoSuggest, Manual: manual}
		if err := set.Validate(); err != nil {
			return policy.ThresholdSet{}, err
		}
		return set, nil
	case profileID != "":
		engine, err := ctx.engineFor(profileID)
		if err != nil {
			return policy.ThresholdSet{}, err
		}
		return engine.DefaultThresholds(), nil
	default:
		return policy.ThresholdSet{}, fmt.Errorf("set --profile or an explicit threshold set")
	}
}
