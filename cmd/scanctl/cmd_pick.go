package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"SignalBot/internal/domain/models"
	"SignalBot/internal/usecase"

	"github.com/spf13/cobra"
)

// pickCmd selects one signal for a consumer
var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Scan and select one signal for a consumer",
	RunE:  runPick,
}

var (
	pickClass    string
	pickConsumer string
	pickPriority string
)

func init() {
	rootCmd.AddCommand(pickCmd)
	pickCmd.Flags().StringVar(&pickClass, "class", "short", "signal class (short|long)")
	pickCmd.Flags().StringVar(&pickConsumer, "consumer", "cli", "consumer id used for recency tracking")
	pickCmd.Flags().StringVar(&pickPriority, "priority", usecase.PriorityFree, "priority tier (admin|vip|long|short|free)")
}

func runPick(cmd *cobra.Command, _ []string) error {
	class := models.SignalClass(pickClass)
	if !class.Valid() {
		return fmt.Errorf("%w: %q", usecase.ErrUnknownClass, pickClass)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := newLocalService(cfg)
	if err != nil {
		return err
	}

	d, err := svc.Pick(cmd.Context(), usecase.PickParams{
		Class:    class,
		Consumer: pickConsumer,
		Priority: pickPriority,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), d)
	}
	return printDelivery(cmd.OutOrStdout(), d)
}

func printDelivery(out io.Writer, d *models.Delivery) error {
	_, err := fmt.Fprintf(out, "%s  %s  %s  %.1f%%  expires %s (%d min)  payout %d%%\n",
		d.BrokerName, d.Timeframe, d.Signal.Direction, d.Signal.Confidence,
		d.ExpirationLabel, d.ExpirationMins, d.Instrument.Payout)
	return err
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
