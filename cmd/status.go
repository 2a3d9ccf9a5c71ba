package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/watchxrpl/watchxrpl/internal/logger"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

var (
	verbose bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show validator status once (non-interactive)",
	Long:  `Query the configured rippled validator once and print its current state, ledger, peer, and fee information without the monitoring loop.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose debug output")
}

func runStatus(cmd *cobra.Command, args []string) {
	logger.SetDebugMode(IsDebugMode() || verbose)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	endpoint := cfg.Node.GetEndpoint()
	fmt.Printf("Checking validator at %s...\n", endpoint)
	client := xrpl.NewRPCClient(endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Node.GetTimeout())
	resp, err := client.ServerInfo(ctx)
	cancel()
	if err != nil {
		fmt.Printf("  ❌ Error: %v\n\n", err)
		return
	}

	snap := xrpl.NewSnapshot(resp)

	fmt.Printf("  ✅ Connected\n")
	fmt.Printf("  Server State: %s\n", snap.State)
	if snap.BuildVersion != "" {
		fmt.Printf("  Build Version: %s\n", snap.BuildVersion)
	}
	if snap.PubkeyValidator != "" {
		fmt.Printf("  Validator Key: %s\n", snap.PubkeyValidator)
	}
	fmt.Printf("  Validated Ledger: %d (age: %ds)\n", snap.LedgerSeq, snap.LedgerAge)
	if snap.CompleteLedgers != "" {
		fmt.Printf("  Complete Ledgers: %s\n", snap.CompleteLedgers)
	}
	fmt.Printf("  Peers: %d\n", snap.Peers)
	fmt.Printf("  Load Factor: %.2f\n", snap.LoadFactor)
	fmt.Printf("  Validation Quorum: %d\n", snap.ValidationQuorum)
	fmt.Printf("  Proposers (last close): %d\n", snap.Proposers)
	fmt.Printf("  I/O Latency: %dms\n", snap.IOLatencyMS)
	fmt.Printf("  Converge Time: %.2fs\n", snap.ConvergeTimeS)
	fmt.Printf("  Uptime: %s\n", formatDuration(time.Duration(snap.UptimeSeconds)*time.Second))

	printFees(client, cfg.Node.GetTimeout())
	printPeerSummary(client, cfg.Node.GetTimeout())
}

func printFees(client xrpl.Client, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	fee, err := client.Fee(ctx)
	cancel()
	if err != nil {
		logger.Debug("Could not get fee info: %v", err)
		return
	}

	fmt.Printf("\n  Fees (drops):\n")
	fmt.Printf("    Base Fee: %s\n", fee.Drops.BaseFee)
	fmt.Printf("    Open Ledger Fee: %s\n", fee.Drops.OpenLedgerFee)
	fmt.Printf("    Median Fee: %s\n", fee.Drops.MedianFee)
	fmt.Printf("    Current Queue Size: %s\n", fee.CurrentQueueSize)
}

func printPeerSummary(client xrpl.Client, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	peers, err := client.Peers(ctx)
	cancel()
	if err != nil {
		logger.Debug("Could not get peer details: %v", err)
		return
	}

	summary := xrpl.SummarizePeers(peers)
	fmt.Printf("\n  Peer Details:\n")
	fmt.Printf("    Inbound: %d\n", summary.Inbound)
	fmt.Printf("    Outbound: %d\n", summary.Outbound)
	if summary.Insane > 0 {
		fmt.Printf("    ⚠️  On wrong ledger: %d\n", summary.Insane)
	}
	if summary.P90LatencyMS > 0 {
		fmt.Printf("    Latency p90: %dms\n", summary.P90LatencyMS)
	}
	fmt.Println()
}

func formatDuration(duration time.Duration) string {
	if duration < 0 {
		return "0s"
	}

	seconds := int(duration.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	seconds = seconds % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
