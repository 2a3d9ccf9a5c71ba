package config

import (
	"time"
)

type Config struct {
	Node             NodeConfig       `mapstructure:"node"`
	PollInterval     string           `mapstructure:"poll_interval"`
	FailureThreshold int              `mapstructure:"failure_threshold"`
	StatsEvery       int              `mapstructure:"stats_every_polls"`
	PeerDetailEvery  int              `mapstructure:"peer_detail_every_polls"`
	StatsWindows     []int            `mapstructure:"stats_windows_hours"`
	Storage          StorageConfig    `mapstructure:"storage"`
	Prometheus       PrometheusConfig `mapstructure:"prometheus"`
	Alerts           AlertsConfig     `mapstructure:"alerts"`
	Log              LogConfig        `mapstructure:"log"`
}

type NodeConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  string `mapstructure:"timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "postgres" or "memory"
	DSN    string `mapstructure:"dsn"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type AlertsConfig struct {
	File string `mapstructure:"file"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func (c *Config) GetPollInterval() time.Duration {
	duration, err := time.ParseDuration(c.PollInterval)
	if err != nil || duration <= 0 {
		return 3 * time.Second
	}
	return duration
}

// GetFailureThreshold is the number of consecutive poll failures tolerated
// before the validator is treated as unreachable.
func (c *Config) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return 2
	}
	return c.FailureThreshold
}

// GetStatsEvery returns how many polls elapse between rolling-stats refreshes.
func (c *Config) GetStatsEvery() int {
	if c.StatsEvery <= 0 {
		return 10
	}
	return c.StatsEvery
}

// GetPeerDetailEvery returns how many polls elapse between peer detail fetches.
func (c *Config) GetPeerDetailEvery() int {
	if c.PeerDetailEvery <= 0 {
		return 10
	}
	return c.PeerDetailEvery
}

// GetStatsWindows returns the trailing windows, in hours, for validation stats.
func (c *Config) GetStatsWindows() []int {
	if len(c.StatsWindows) == 0 {
		return []int{1, 24}
	}
	return c.StatsWindows
}

func (nc *NodeConfig) GetEndpoint() string {
	if nc.Endpoint == "" {
		return "http://localhost:5005"
	}
	return nc.Endpoint
}

func (nc *NodeConfig) GetTimeout() time.Duration {
	duration, err := time.ParseDuration(nc.Timeout)
	if err != nil || duration <= 0 {
		return 10 * time.Second
	}
	return duration
}

// GetDriver returns the storage driver, defaulting to postgres.
func (sc *StorageConfig) GetDriver() string {
	if sc.Driver == "" {
		return "postgres"
	}
	return sc.Driver
}

func (pc *PrometheusConfig) GetListen() string {
	if pc.Listen == "" {
		return ":9091"
	}
	return pc.Listen
}

func (ac *AlertsConfig) GetFile() string {
	if ac.File == "" {
		return "data/alerts.log"
	}
	return ac.File
}

func (lc *LogConfig) GetLevel() string {
	if lc.Level == "" {
		return "warn"
	}
	return lc.Level
}
