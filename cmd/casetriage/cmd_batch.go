package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-triage/internal/domain"
)

func newBatchCmd(s *session) *cobra.Command {
	var (
		concurrency int
		pretty      bool
	)

	cmd := &cobra.Command{
		Use:   "batch <cases-file|->",
		Short: "Evaluate a list of cases concurrently",
		Long: `Batch reads a YAML or JSON list of cases, each shaped like the input
to "evaluate", and prints a JSON array of evaluations in input order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var inputs []domain.Input
			if err := decodeStrict(data, &inputs); err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := s.buildPipeline(ctx)
			if err != nil {
				return err
			}
			for i := range inputs {
				inputs[i] = p.enrich(ctx, inputs[i])
			}

			results, err := p.engine.EvaluateBatch(ctx, inputs, concurrency)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results, pretty)
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Parallel evaluations (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	return cmd
}
