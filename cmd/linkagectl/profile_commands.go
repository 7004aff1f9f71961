package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"linkage/internal/profile"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect and validate detection profiles",
	}

	profileCmd.AddCommand(newProfileListCommand(ctx))
	profileCmd.AddCommand(newProfileShowCommand(ctx))
	profileCmd.AddCommand(newProfileValidateCommand())

	return profileCmd
}

func newProfileListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := ctx.ensureRegistry()
			if err != nil {
				return err
			}

			profiles := make([]*profile.Profile, 0, registry.Len())
			for _, profileID := range registry.IDs() {
				engine, ok := registry.Get(profileID)
				if !ok {
					continue
				}
				profiles = append(profiles, engine.Profile)
			}

			if jsonOut {
				return writeJSON(cmd, profiles)
			}

			rows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				rows = append(rows, []string{
					p.Meta.ID,
					p.Meta.Name,
					p.Meta.EntityKind,
					strconv.Itoa(len(p.Factors)),
					formatScore(p.Thresholds.AutoLink),
					formatScore(p.Thresholds.AutoSuggest),
					formatScore(p.Thresholds.Manual),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "NAME", "ENTITY", "FACTORS", "AUTO-LINK", "AUTO-SUGGEST", "MANUAL"},
				rows, 4, 5, 6, 7,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newProfileShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <profile>",
		Short: "Show one profile's factors, thresholds, and blocking bounds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := ctx.engineFor(args[0])
			if err != nil {
				return err
			}
			p := engine.Profile

			if jsonOut {
				return writeJSON(cmd, p)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", p.Meta.ID, p.Meta.Name)
			if p.Meta.EntityKind != "" {
				fmt.Fprintf(out, "Entity kind:      %s\n", p.Meta.EntityKind)
			}
			fmt.Fprintf(out, "Suggestion floor: %s\n", formatScore(p.Meta.MinSuggest))
			fmt.Fprintf(out, "Factor timeout:   %dms, workers: %d\n", p.Meta.FactorTimeoutMS, p.Meta.Workers)
			fmt.Fprintf(out, "Thresholds:       auto_link %s, auto_suggest %s, manual %s\n\n",
				formatScore(p.Thresholds.AutoLink),
				formatScore(p.Thresholds.AutoSuggest),
				formatScore(p.Thresholds.Manual),
			)

			rows := make([][]string, 0, len(p.Factors))
			for _, spec := range p.Factors {
				blocking := ""
				if spec.Blocking {
					blocking = "yes"
				}
				rows = append(rows, []string{
					spec.Label(),
					spec.Kind,
					spec.Field,
					formatWeight(spec.Weight),
					blocking,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"FACTOR", "KIND", "FIELD", "WEIGHT", "BLOCKING"},
				rows, 4,
			))

			if bounds := p.BlockingBounds(); len(bounds) > 0 {
				boundRows := make([][]string, 0, len(bounds))
				for _, bound := range bounds {
					boundRows = append(boundRows, []string{
						bound.Factor,
						formatWeight(bound.Weight),
						formatScore(bound.BestWithout),
						formatScore(bound.Floor),
					})
				}
				fmt.Fprintln(out, "\nBlocking bounds (best confidence a rejected candidate could still reach):")
				fmt.Fprintln(out, renderTable(
					[]string{"FACTOR", "WEIGHT", "BEST WITHOUT", "FLOOR"},
					boundRows, 2, 3, 4,
				))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}

func newProfileValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate profile documents",
		Long: `Validate parses each document, checks its thresholds, factor parameters,
and blocking recall bounds, and compiles it the way the server would at
startup. Exit status is non-zero when any document fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				p, err := profile.Load(path)
				if err == nil {
					_, err = p.Build()
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok (%s, %d factors)\n", path, p.Meta.ID, len(p.Factors))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d profile documents failed validation", failed, len(args))
			}
			return nil
		},
	}
}
