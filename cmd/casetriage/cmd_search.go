package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd(s *session) *cobra.Command {
	var (
		k      int
		pretty bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>...",
		Short: "Rank catalog entities by semantic similarity to text",
		Long: `Search embeds every catalog entity, then the query text, and prints
the top matches as JSON. It requires --catalog and --embedding-provider.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s.opts.provider == "" {
				return errors.New("search requires --embedding-provider (openai or google)")
			}
			cat, err := s.loadCatalog()
			if err != nil {
				return err
			}
			if cat.Len() == 0 {
				return errors.New("search requires a non-empty --catalog")
			}

			ctx := cmd.Context()
			searcher, err := s.buildSearcher(ctx, cat)
			if err != nil {
				return err
			}
			matches, err := searcher.Search(ctx, strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), matches, pretty)
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 5, "Number of matches")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	return cmd
}
