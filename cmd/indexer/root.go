package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"restaurant_catalog/internal/adapters/observability"
	"restaurant_catalog/internal/bootstrap"
	"restaurant_catalog/internal/shared"
)

// runner is what the subcommands need from the wired service graph.
type runner struct {
	deps *bootstrap.Deps
	cfg  shared.Config
}

type runnerFactory func(ctx context.Context, cfg shared.Config) (*runner, error)

func newRunner(ctx context.Context, cfg shared.Config) (*runner, error) {
	d, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &runner{deps: d, cfg: cfg}, nil
}

func newRootCmd(factory runnerFactory) *cobra.Command {
	var store string
	var r *runner

	cmd := &cobra.Command{
		Use:           "indexer",
		Short:         "Index restaurants from the configured providers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := shared.Load()
			if store != "" {
				cfg.Store = store
			}
			log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
			var err error
			r, err = factory(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if r != nil && r.deps != nil {
				r.deps.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&store, "store", "", "catalog store (mysql|memory); overrides CATALOG_STORE")

	get := func() *runner { return r }
	cmd.AddCommand(newAreaCmd(get), newReindexCmd(get))
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
