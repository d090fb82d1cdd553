package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"restaurant_catalog/internal/domain"
)

type areaResult struct {
	Location string             `json:"location"`
	Stats    *domain.IndexStats `json:"stats,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func newAreaCmd(get func() *runner) *cobra.Command {
	var category string
	var parallel int

	cmd := &cobra.Command{
		Use:   "area <location>...",
		Short: "Index every restaurant the providers list for each location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := get()
			if parallel <= 0 {
				parallel = 1
			}
			ctx := cmd.Context()
			timeout := r.cfg.JobTimeout
			if timeout <= 0 {
				timeout = 10 * time.Minute
			}

			results := make([]areaResult, len(args))
			sem := semaphore.NewWeighted(int64(parallel))
			var wg sync.WaitGroup
			for i, loc := range args {
				// acquire before launching the goroutine; release inside it
				if err := sem.Acquire(ctx, 1); err != nil {
					results[i] = areaResult{Location: loc, Error: err.Error()}
					continue
				}
				wg.Add(1)
				go func(i int, loc string) {
					defer wg.Done()
					defer sem.Release(1)

					// each location gets the same deadline an API job would
					jobCtx, cancel := context.WithTimeout(ctx, timeout)
					defer cancel()

					stats, err := r.deps.Indexer.IndexArea(jobCtx, loc, category)
					if err != nil {
						log.Warn().Str("location", loc).Err(err).Msg("area index failed")
						results[i] = areaResult{Location: loc, Error: err.Error()}
						return
					}
					results[i] = areaResult{Location: loc, Stats: &stats}
				}(i, loc)
			}
			wg.Wait()

			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			failed := 0
			for _, res := range results {
				if res.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d locations failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "provider category filter")
	cmd.Flags().IntVar(&parallel, "parallel", 2, "locations indexed concurrently")
	return cmd
}
