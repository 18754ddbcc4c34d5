package main

import (
	"github.com/spf13/cobra"

	"github.com/serpius-project/wedx-go/internal/portfolio"
)

var targetCmd = &cobra.Command{
	Use:   "target",
	Short: "Print the target portfolio built from current exchange data",
	Long:  "Builds the target the agent would set, without connecting to the chain.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		cfg := cli.cfg
		dep, err := deployment(cfg)
		if err != nil {
			return err
		}
		feed, closeFeed, err := marketSource(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFeed()

		assets, err := feed.Assets(ctx, cfg.Chain.Name)
		if err != nil {
			return err
		}
		target, err := portfolio.Build(assets, portfolio.Options{
			Strategy: cfg.Strategy,
			TopN:     cfg.TopN,
			Native:   dep.NativeWrapper,
			Exclude:  cfg.Rebalance().Exclude,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, target)
	},
}
