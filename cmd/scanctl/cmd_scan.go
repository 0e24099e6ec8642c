package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"SignalBot/internal/domain/models"
	"SignalBot/internal/usecase"

	"github.com/spf13/cobra"
)

// scanCmd runs one scan for a class
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the catalog and print the ranked candidates",
	RunE:  runScan,
}

var (
	scanClass   string
	scanTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanClass, "class", "short", "signal class (short|long)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 45*time.Second, "scan deadline")
}

func runScan(cmd *cobra.Command, _ []string) error {
	class := models.SignalClass(scanClass)
	if !class.Valid() {
		return fmt.Errorf("%w: %q", usecase.ErrUnknownClass, scanClass)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := newLocalService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, scanTimeout)
	defer cancel()
	res, err := svc.Scan(ctx, class, true)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	return printScan(cmd.OutOrStdout(), res)
}

func printScan(out io.Writer, res usecase.ScanResult) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "class: %s\tscanned: %s\tsynthetic: %t\n\n", res.Class, res.ScannedAt.Format(time.RFC3339), res.Synthetic)
	fmt.Fprintln(tw, "#\tINSTRUMENT\tTF\tDIRECTION\tCONFIDENCE\tPAYOUT\tFALLBACK")
	for i, c := range res.Candidates {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.1f\t%d%%\t%t\n",
			i+1, c.Instrument.Name, c.Timeframe, c.Signal.Direction,
			c.Signal.Confidence, c.Instrument.Payout, c.Signal.Fallback)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
