package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/watchxrpl/watchxrpl/internal/logger"
	"github.com/watchxrpl/watchxrpl/internal/monitor"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Interactive terminal dashboard",
	Long: `Show a live terminal dashboard for the configured validator: current state,
ledger progress, peers, validation statistics, and recent state transitions.
Run the monitor command separately to keep history and alerts flowing.`,
	Run: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	logger.SetDebugMode(IsDebugMode())

	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Printf("Error opening storage: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	client := xrpl.NewRPCClient(cfg.Node.GetEndpoint())
	mon := monitor.NewMonitor(client, st, cfg.GetStatsWindows(), cfg.GetPollInterval())

	go mon.Start(ctx)

	display := monitor.NewDisplay(mon)
	if err := display.Run(); err != nil {
		fmt.Printf("Error running display: %v\n", err)
		os.Exit(1)
	}
}
