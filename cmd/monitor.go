// Copyright © 2025 Attestant Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/watchxrpl/watchxrpl/internal/alert"
	"github.com/watchxrpl/watchxrpl/internal/config"
	"github.com/watchxrpl/watchxrpl/internal/export"
	"github.com/watchxrpl/watchxrpl/internal/logger"
	"github.com/watchxrpl/watchxrpl/internal/poller"
	"github.com/watchxrpl/watchxrpl/internal/store"
	"github.com/watchxrpl/watchxrpl/internal/xrpl"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Start continuous validator monitoring",
	Long: `Start the monitoring loop against the configured rippled validator.
Polls server state, records state transitions and per-ledger validation
outcomes, raises alerts, and serves Prometheus metrics.`,
	Run: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

// loadConfig unmarshals the viper config, retrying the read for commands that
// run before cobra's OnInitialize has seen a config file.
func loadConfig() (*config.Config, error) {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file not found, create a watchxrpl.yml or pass --config")
		}
		if err := viper.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	return &cfg, nil
}

// openStore builds the storage backend named by the config.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.GetDriver() {
	case "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		if cfg.Storage.DSN == "" {
			return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
		}
		return store.NewPostgresStore(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func runMonitor(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Log.GetLevel()
	logCfg.File = cfg.Log.File
	if err := logger.Init(logCfg); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDebugMode(IsDebugMode())
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Printf("Error opening storage: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	alerter, err := alert.NewFileAlerter(cfg.Alerts.GetFile())
	if err != nil {
		fmt.Printf("Error setting up alerts: %v\n", err)
		os.Exit(1)
	}

	var exporter *export.Exporter
	if cfg.Prometheus.Enabled {
		exporter = export.New()
		listen := cfg.Prometheus.GetListen()
		go func() {
			if err := exporter.Serve(listen); err != nil {
				logger.Error("Metrics server stopped: %v", err)
			}
		}()
		fmt.Printf("Prometheus metrics on %s/metrics\n", listen)
	}

	client := xrpl.NewRPCClient(cfg.Node.GetEndpoint())

	fmt.Println("XRPL Validator Monitor")
	fmt.Printf("Endpoint: %s | Poll interval: %s | Storage: %s\n",
		cfg.Node.GetEndpoint(), cfg.GetPollInterval(), cfg.Storage.GetDriver())
	fmt.Printf("Alerts: %s\n", alerter.File())

	probeCtx, probeCancel := context.WithTimeout(ctx, cfg.Node.GetTimeout())
	if resp, err := client.ServerInfo(probeCtx); err == nil {
		snap := xrpl.NewSnapshot(resp)
		fmt.Printf("Connected: rippled %s | state: %s | ledger: %d\n",
			snap.BuildVersion, snap.State, snap.LedgerSeq)
		if snap.PubkeyValidator != "" {
			fmt.Printf("Validator key: %s\n", snap.PubkeyValidator)
		}
	} else {
		fmt.Printf("Initial probe failed (monitoring will keep retrying): %v\n", err)
	}
	probeCancel()
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	p := poller.New(client, st, alerter, exporter, poller.Config{
		Interval:         cfg.GetPollInterval(),
		RPCTimeout:       cfg.Node.GetTimeout(),
		FailureThreshold: cfg.GetFailureThreshold(),
		StatsEvery:       cfg.GetStatsEvery(),
		PeerDetailEvery:  cfg.GetPeerDetailEvery(),
		StatsWindows:     cfg.GetStatsWindows(),
	})
	p.Run(ctx)

	summary := p.Summary()
	fmt.Println("\nSession summary")
	fmt.Printf("  Polls: %d\n", summary.Polls)
	fmt.Printf("  State changes: %d\n", summary.StateChanges)
	fmt.Printf("  Validations checked: %d\n", summary.ValidationsChecked)
	fmt.Printf("  Alerts sent: %d\n", summary.AlertsSent)
	fmt.Printf("  API errors: %d\n", summary.APIErrors)
}
