package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/serpius-project/wedx-go/internal/chain"
	"github.com/serpius-project/wedx-go/internal/distro"
	"github.com/serpius-project/wedx-go/internal/ethutil"
	"github.com/serpius-project/wedx-go/internal/wedx"
)

type accountStatus struct {
	Chain         string               `json:"chain"`
	User          string               `json:"user"`
	WalletBalance string               `json:"wallet_balance_eth"`
	Account       string               `json:"account,omitempty"`
	AccountValue  string               `json:"account_balance_eth,omitempty"`
	Distribution  *distro.Distribution `json:"distribution,omitempty"`
	Threshold     int64                `json:"min_perc_allowance,omitempty"`
	Score         string               `json:"score"`
	Interactions  int                  `json:"interactions"`
	Required      int64                `json:"required_interactions"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wallet, account distribution and trader score",
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

		st := accountStatus{Chain: cfg.Chain.Name, User: cfg.User.Hex()}
		bal, err := chain.NativeBalance(ctx, ec, cfg.User)
		if err != nil {
			return err
		}
		st.WalletBalance = chain.FormatEther(bal)

		account, err := client.Portfolio(ctx)
		switch {
		case errors.Is(err, wedx.ErrNoAccount):
			log.Warn("no portfolio account yet; create one with `wedx account create`")
		case err != nil:
			return err
		default:
			st.Account = account.Address().Hex()
			if bal, err := chain.NativeBalance(ctx, ec, account.Address()); err == nil {
				st.AccountValue = chain.FormatEther(bal)
			}
			shares, err := account.ActualDistribution(ctx)
			if err != nil {
				return fmt.Errorf("distribution: %w", err)
			}
			held, err := account.Addresses(ctx)
			if err != nil {
				return fmt.Errorf("addresses: %w", err)
			}
			d := distro.NewDistribution(ethutil.HexStrings(held), shares)
			st.Distribution = &d
			if st.Threshold, err = account.MinPercAllowance(ctx); err != nil {
				return fmt.Errorf("threshold: %w", err)
			}
		}

		manager := client.Manager()
		score, err := manager.TraderScore(ctx, cfg.User)
		if err != nil {
			return fmt.Errorf("score: %w", err)
		}
		st.Score = score.String()
		if st.Interactions, err = manager.TraderInteractions(ctx, cfg.User); err != nil {
			return fmt.Errorf("trader data: %w", err)
		}
		if st.Required, err = manager.RequiredInteractions(ctx); err != nil {
			return fmt.Errorf("points: %w", err)
		}
		return printJSON(cmd, st)
	},
}
