package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/scenario-risk/internal/service"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

type runOptions struct {
	seed    int64
	runs    int
	format  string
	places  int32
	csvPath string
	jsonOut string
	persist bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a simulation for a scenario file or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, args[0], opts)
		},
	}
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed for the random number generator (defaults to engine.default_seed)")
	cmd.Flags().IntVar(&opts.runs, "runs", 0, "Override the scenario run count")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().Int32Var(&opts.places, "places", 2, "Decimal places in the text report")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "Write histogram and tornado CSV to this path")
	cmd.Flags().StringVar(&opts.jsonOut, "json-out", "", "Write the full JSON result to this path")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Persist the result to the database")
	return cmd
}

func runSimulation(cmd *cobra.Command, source string, opts *runOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q", opts.format)
	}
	ctx := cmd.Context()

	progress := func(p simulation.Progress) {
		appLog.WithFields(logrus.Fields{
			"completed": p.CompletedRuns,
			"total":     p.TotalRuns,
		}).Debugf("Progress %.0f%%", p.Fraction()*100)
	}
	c, err := buildComponents(ctx, opts.persist, progress)
	if err != nil {
		return err
	}
	defer c.Close()

	scenarioCfg, err := c.service.LoadScenario(ctx, source)
	if err != nil {
		return err
	}
	if opts.runs > 0 {
		scenarioCfg.Runs = opts.runs
	}

	req := service.Request{Scenario: scenarioCfg, Persist: opts.persist}
	if cmd.Flags().Changed("seed") {
		req.Seed = &opts.seed
	}

	resp, err := c.service.Simulate(ctx, req)
	if err != nil {
		return err
	}
	result := resp.Result

	out := cmd.OutOrStdout()
	switch opts.format {
	case "json":
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(out, string(data))
	default:
		fmt.Fprint(out, simulation.GenerateConsoleReport(result, opts.places))
		if resp.ResultID != uuid.Nil {
			fmt.Fprintf(out, "Result ID: %s\n", resp.ResultID)
		}
	}

	if opts.csvPath != "" {
		if err := simulation.GenerateCSVExport(result, opts.csvPath); err != nil {
			return err
		}
	}
	if opts.jsonOut != "" {
		if err := simulation.ExportToJSON(result, opts.jsonOut); err != nil {
			return err
		}
	}
	return nil
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Validate a scenario without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(cmd.Context(), false, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			scenarioCfg, err := c.service.LoadScenario(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := c.service.Engine().Validate(scenarioCfg); err != nil {
				return err
			}
			fp, err := simulation.Fingerprint(scenarioCfg, cfg.Engine.DefaultSeed, c.service.Engine().Config())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d variables, %d runs, fingerprint %s\n",
				scenarioCfg.Name, scenarioCfg.ID, len(scenarioCfg.Variables), scenarioCfg.Runs, fp)
			return nil
		},
	}
}
