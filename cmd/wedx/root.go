package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/serpius-project/wedx-go/internal/config"
	"github.com/serpius-project/wedx-go/internal/dotenv"
)

var log = logrus.WithField("prefix", "cmd")

// app carries the configuration resolved before any subcommand runs.
type app struct {
	v   *viper.Viper
	cfg config.Config

	closeLog func() error
}

var (
	cli     = &app{}
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "wedx",
	Short: "WedX portfolio rebalancing agent",
	Long:  "Keeps a WedX portfolio account aligned with a target built from exchange data.",

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := dotenv.Load(envFile); err != nil {
			return err
		}
		cfg, err := config.FromViper(cli.v)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cli.cfg = cfg
		cli.closeLog = setupLogging(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd, onceCmd, statusCmd, targetCmd, accountCmd, depositCmd, withdrawCmd)
}

func Execute() {
	v, err := config.NewViper(rootCmd.PersistentFlags())
	if err != nil {
		log.WithError(err).Fatal("failed to bind flags")
	}
	cli.v = v

	if err := execute(rootCmd); err != nil {
		os.Exit(1)
	}
}

// execute runs cmd and closes the log file whether or not it failed.
func execute(cmd *cobra.Command) error {
	err := cmd.Execute()
	if cli.closeLog != nil {
		if cerr := cli.closeLog(); cerr != nil {
			log.WithError(cerr).Warn("log file close failed")
		}
		cli.closeLog = nil
	}
	return err
}
