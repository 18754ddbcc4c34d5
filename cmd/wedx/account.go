package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/distro"
	"github.com/serpius-project/wedx-go/internal/metrics"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage the portfolio account",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the portfolio account if the user has none",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		cfg := cli.cfg
		ec, client, err := connect(ctx, &cfg)
		if err != nil {
			return err
		}
		defer ec.Close()
		if err := requireSigner(client); err != nil {
			return err
		}

		addr, created, err := client.EnsureAccount(ctx)
		observeCreate(created, err)
		if err != nil {
			return err
		}
		if created {
			log.Infof("portfolio account created: %s", addr.Hex())
		} else {
			log.Infof("portfolio account already exists: %s", addr.Hex())
		}
		return nil
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <eth>",
	Short: "Deposit native currency into the portfolio account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wei, err := chain.ParseEther(args[0])
		if err != nil {
			return err
		}
		if wei.Sign() <= 0 {
			return fmt.Errorf("deposit amount must be positive")
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		cfg := cli.cfg
		ec, client, err := connect(ctx, &cfg)
		if err != nil {
			return err
		}
		defer ec.Close()
		if err := requireSigner(client); err != nil {
			return err
		}

		account, err := client.Portfolio(ctx)
		if err != nil {
			return err
		}
		opts, err := client.TransactOpts(ctx)
		if err != nil {
			return err
		}
		receipt, err := account.Deposit(ctx, opts, wei)
		metrics.ObserveTx("deposit", err)
		if err != nil {
			return err
		}
		log.Infof("deposited %s %s: tx=%s", chain.FormatEther(wei), cfg.Chain.Name, receipt.TxHash.Hex())
		return nil
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <perc>",
	Short: "Withdraw a fraction of the account, in units of 1000000 = 100%",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		perc, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid percentage %q: %w", args[0], err)
		}
		if perc <= 0 || perc > distro.Norm {
			return fmt.Errorf("percentage must be in (0, %d], got %d", distro.Norm, perc)
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		cfg := cli.cfg
		ec, client, err := connect(ctx, &cfg)
		if err != nil {
			return err
		}
		defer ec.Close()
		if err := requireSigner(client); err != nil {
			return err
		}

		account, err := client.Portfolio(ctx)
		if err != nil {
			return err
		}
		opts, err := client.TransactOpts(ctx)
		if err != nil {
			return err
		}
		receipt, err := account.Withdraw(ctx, opts, perc)
		metrics.ObserveTx("withdraw", err)
		if err != nil {
			return err
		}
		log.Infof("withdrew %d/%d of the account: tx=%s", perc, distro.Norm, receipt.TxHash.Hex())
		return nil
	},
}

func init() {
	accountCmd.AddCommand(accountCreateCmd)
}
