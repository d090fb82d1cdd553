package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"restaurant_catalog/internal/app"
)

func newReindexCmd(get func() *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <restaurant-id>...",
		Short: "Refresh restaurants from every provider they are linked to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid restaurant id %q", a)
				}
				ids = append(ids, id)
			}

			r := get()
			out := make([]app.ReindexResult, 0, len(ids))
			for _, id := range ids {
				res, err := r.deps.Indexer.Reindex(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("reindex %d: %w", id, err)
				}
				out = append(out, res)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
