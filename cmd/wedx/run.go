package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/serpius-project/wedx-go/internal/ethutil"
	"github.com/serpius-project/wedx-go/internal/rebalance"
	"github.com/serpius-project/wedx-go/internal/server"
)

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func modeName(enableTrading bool) string {
	if enableTrading {
		return "live"
	}
	return "dry-run"
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run rebalance cycles on a schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		cfg := cli.cfg
		hub := server.NewHub()
		agent, cleanup, err := newAgent(ctx, &cfg, rebalance.WithObserver(func(res rebalance.CycleResult) {
			hub.Publish(res)
		}))
		if err != nil {
			return err
		}
		defer cleanup()

		sched, err := rebalance.NewScheduler(agent, cfg.Schedule, cfg.RunOnStart)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		serveErr := make(chan error, 1)
		if cfg.MetricsAddr != "" {
			go hub.Run(ctx)
			go func() {
				serveErr <- server.ListenAndServe(ctx, cfg.MetricsAddr, server.NewRouter(agent, hub))
			}()
		}

		log.Infof("agent started: mode=%s strategy=%s top_n=%d schedule=%q", modeName(cfg.EnableTrading), cfg.Strategy, cfg.TopN, sched.Spec())
		if len(cfg.Exclude) > 0 {
			log.Infof("excluded assets: %s", ethutil.JoinHex(cfg.Exclude))
		}

		schedDone := make(chan error, 1)
		go func() { schedDone <- sched.Run(ctx) }()

		select {
		case err = <-schedDone:
			return err
		case err = <-serveErr:
			// The ops server died; stop cycles and report why.
			cancel()
			<-schedDone
			return err
		}
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single rebalance cycle and print its result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		cfg := cli.cfg
		agent, cleanup, err := newAgent(ctx, &cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		res, cycleErr := agent.RunCycle(ctx)
		if err := printJSON(cmd, res); err != nil {
			return err
		}
		return cycleErr
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
