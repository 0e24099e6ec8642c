package main

import (
	"fmt"

	"SignalBot/internal/di"
	"SignalBot/internal/service/stake"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// stakeCmd sizes the next trade under a strategy
var stakeCmd = &cobra.Command{
	Use:   "stake",
	Short: "Compute the next stake under a strategy",
	RunE:  runStake,
}

var (
	stakeStrategy string
	stakeBalance  float64
	stakeCurrent  float64
	stakeBase     float64
	stakeWon      bool
)

func init() {
	rootCmd.AddCommand(stakeCmd)
	stakeCmd.Flags().StringVar(&stakeStrategy, "strategy", stake.Martingale, "martingale|percentage|dalembert|conservative")
	stakeCmd.Flags().Float64Var(&stakeBalance, "balance", 0, "account balance")
	stakeCmd.Flags().Float64Var(&stakeCurrent, "current", 0, "stake of the previous trade")
	stakeCmd.Flags().Float64Var(&stakeBase, "base", 0, "base stake; derived from balance when zero")
	stakeCmd.Flags().BoolVar(&stakeWon, "won", false, "whether the previous trade won")
}

func runStake(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := di.ProvideStakeRegistry(cfg)
	strategy, err := reg.Get(stakeStrategy)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "unknown strategy %q, using %s\n", stakeStrategy, strategy.Name())
	}

	step := stake.Step{
		Balance: decimal.NewFromFloat(stakeBalance),
		Current: decimal.NewFromFloat(stakeCurrent),
		Base:    decimal.NewFromFloat(stakeBase),
	}
	if cmd.Flags().Changed("won") {
		won := stakeWon
		step.Won = &won
	}
	next := stake.Next(strategy, step)
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"strategy": strategy.Name(),
			"stake":    next,
		})
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", strategy.Name(), next.StringFixed(2))
	return err
}
