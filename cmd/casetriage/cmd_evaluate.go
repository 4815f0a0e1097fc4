package main

import (
	"github.com/spf13/cobra"

	"github.com/ahrav/go-triage/internal/domain"
)

func newEvaluateCmd(s *session) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "evaluate <case-file|->",
		Short: "Classify one case and resolve its entity",
		Long: `Evaluate reads one case as YAML or JSON:

  case:
    description: "NullPointerException at com.acme.billing.InvoiceServiceImpl.process"
    notes: ""
    category_tiers: ["Application Error"]
  history:
    - id: CASE-1001
      resolution_text: "Shipped a code fix"
  semantic:            # optional; omit to look up with --embedding-provider
    - name: InvoiceService
      score: 0.82

and prints {"classification": ..., "resolution": ...} as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var in domain.Input
			if err := decodeStrict(data, &in); err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := s.buildPipeline(ctx)
			if err != nil {
				return err
			}

			c, r := p.engine.Evaluate(ctx, p.enrich(ctx, in))
			return writeJSON(cmd.OutOrStdout(), domain.Evaluation{Classification: c, Resolution: r}, pretty)
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	return cmd
}
