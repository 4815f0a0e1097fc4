package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-triage/internal/domain"
	"github.com/ahrav/go-triage/internal/testutils"
)

func newBenchmarkCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "benchmark <dataset.json>",
		Short: "Score the engine against a labeled case dataset",
		Long: `Benchmark evaluates every case in a labeled dataset and reports
classification accuracy, precision, recall, and how often the best
candidate matched the labeled entity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := testutils.LoadCaseDataset(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := s.buildPipeline(ctx)
			if err != nil {
				return err
			}

			metrics := testutils.NewBenchmarkMetrics()
			for _, lc := range dataset.Cases {
				in := p.enrich(ctx, lc.Input)
				start := time.Now()
				c, r := p.engine.Evaluate(ctx, in)
				metrics.Record(lc, evaluation(c, r), time.Since(start))
			}

			stats := testutils.ComputeDatasetStatistics(dataset)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset: %s %s (%d cases, %d code defects)\n\n",
				dataset.Metadata.Name, dataset.Metadata.Version, stats.TotalCases, stats.CodeDefects)
			fmt.Fprint(out, metrics.GenerateReport())
			return nil
		},
	}
}

func evaluation(c domain.ClassificationResult, r domain.ResolutionResult) domain.Evaluation {
	return domain.Evaluation{Classification: c, Resolution: r}
}
