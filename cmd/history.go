package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/watchxrpl/watchxrpl/internal/alert"
	"github.com/watchxrpl/watchxrpl/internal/logger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded monitoring history",
	Long:  `Print recent state transitions, validation statistics, and alerts from storage.`,
	Run:   runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "How many recent entries to show")
}

func runHistory(cmd *cobra.Command, args []string) {
	logger.SetDebugMode(IsDebugMode())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Printf("Error opening storage: %v\n", err)
		return
	}
	defer st.Close()

	fmt.Printf("=== Validation Statistics ===\n\n")
	for _, hours := range cfg.GetStatsWindows() {
		stats, err := st.ValidationStats(ctx, hours)
		if err != nil {
			fmt.Printf("  %dh window: error: %v\n", hours, err)
			continue
		}
		fmt.Printf("  Last %dh: %d checked, %d agreed, %d missed (%.1f%%)\n",
			stats.WindowHours, stats.TotalChecked, stats.AgreedCount,
			stats.MissedCount, stats.AgreementRatePct)
	}

	fmt.Printf("\n=== Recent State Transitions ===\n\n")
	transitions, err := st.RecentTransitions(ctx, historyLimit)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
	} else if len(transitions) == 0 {
		fmt.Println("  No transitions recorded")
	} else {
		for _, tr := range transitions {
			fmt.Printf("  [%s] %s -> %s after %s (ledger %d)\n",
				tr.Timestamp.Format("2006-01-02 15:04:05"), tr.OldState, tr.NewState,
				formatDuration(tr.DurationInOldState), tr.LedgerSeq)
		}
	}

	fmt.Printf("\n=== Recent Samples ===\n\n")
	samples, err := st.RecentSamples(ctx, historyLimit)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
	} else if len(samples) == 0 {
		fmt.Println("  No samples recorded")
	} else {
		for _, s := range samples {
			fmt.Printf("  [%s] %-12s ledger %d, %d peers, load %.2f\n",
				s.Timestamp.Format("2006-01-02 15:04:05"), s.ServerState,
				s.LedgerSeq, s.Peers, s.LoadFactor)
		}
	}

	fmt.Printf("\n=== Recent Alerts ===\n\n")
	alerter, err := alert.NewFileAlerter(cfg.Alerts.GetFile())
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return
	}
	lines, err := alerter.Recent(historyLimit)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
	} else if len(lines) == 0 {
		fmt.Println("  No alerts recorded")
	} else {
		for _, line := range lines {
			fmt.Printf("  %s\n", line)
		}
	}
	fmt.Println()
}
