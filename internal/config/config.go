// Package config loads aegisnet settings from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"aegisnet/internal/detectors"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AEGISNET_SERVER_ADDR
const EnvPrefix = "AEGISNET"

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
}

type AuthConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Secret      string        `mapstructure:"secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
}

type StoreConfig struct {
	HistoryCapacity int `mapstructure:"history_capacity"`
}

type DetectorsConfig struct {
	DDoSStrategy               string        `mapstructure:"ddos_strategy"`
	DDoSRatio                  float64       `mapstructure:"ddos_ratio"`
	DDoSRatioWindow            int           `mapstructure:"ddos_ratio_window"`
	DDoSThresholdWindow        int           `mapstructure:"ddos_threshold_window"`
	PacketThreshold            float64       `mapstructure:"packet_threshold"`
	ByteThreshold              float64       `mapstructure:"byte_threshold"`
	DropThreshold              float64       `mapstructure:"drop_threshold"`
	RogueCPUPercent            float64       `mapstructure:"rogue_cpu_percent"`
	KnownProcesses             []string      `mapstructure:"known_processes"`
	MalwareOutboundConnections int           `mapstructure:"malware_outbound_connections"`
	CPUSpikePercent            float64       `mapstructure:"cpu_spike_percent"`
	TrendSamples               int           `mapstructure:"trend_samples"`
	TrendFactor                float64       `mapstructure:"trend_factor"`
	MLEnabled                  bool          `mapstructure:"ml_enabled"`
	MLContamination            float64       `mapstructure:"ml_contamination"`
	MLMinSamples               int           `mapstructure:"ml_min_samples"`
	MLTrees                    int           `mapstructure:"ml_trees"`
	MLRefitInterval            time.Duration `mapstructure:"ml_refit_interval"`
	MLSeed                     int64         `mapstructure:"ml_seed"`
}

type RemediationConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type AgentConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ID           string        `mapstructure:"id"`
	Interval     time.Duration `mapstructure:"interval"`
	TopProcesses int           `mapstructure:"top_processes"`
	RegisterSelf bool          `mapstructure:"register_self"`
	DiskPath     string        `mapstructure:"disk_path"`
}

type WindowsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Size           int    `mapstructure:"size"`
	LogDir         string `mapstructure:"log_dir"`
	AttackFlagPath string `mapstructure:"attack_flag_path"`
}

type SimulationConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Duration int           `mapstructure:"duration"`
}

type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Config is the full process configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Store       StoreConfig       `mapstructure:"store"`
	Detectors   DetectorsConfig   `mapstructure:"detectors"`
	Remediation RemediationConfig `mapstructure:"remediation"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Windows     WindowsConfig     `mapstructure:"windows"`
	Simulation  SimulationConfig  `mapstructure:"simulation"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	d := detectors.DefaultConfig()

	v.SetDefault("server.addr", "localhost:8000")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit_rps", 100)
	v.SetDefault("server.rate_limit_burst", 200)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_expiry", "2160h")

	v.SetDefault("store.history_capacity", 100)

	v.SetDefault("detectors.ddos_strategy", string(d.DDoSStrategy))
	v.SetDefault("detectors.ddos_ratio", d.DDoSRatio)
	v.SetDefault("detectors.ddos_ratio_window", d.DDoSRatioWindow)
	v.SetDefault("detectors.ddos_threshold_window", d.ThresholdWindow)
	v.SetDefault("detectors.packet_threshold", d.Thresholds.Packets)
	v.SetDefault("detectors.byte_threshold", d.Thresholds.Bytes)
	v.SetDefault("detectors.drop_threshold", d.Thresholds.Drops)
	v.SetDefault("detectors.rogue_cpu_percent", d.RogueCPUPercent)
	v.SetDefault("detectors.known_processes", detectors.DefaultKnownProcesses)
	v.SetDefault("detectors.malware_outbound_connections", d.MaxOutbound)
	v.SetDefault("detectors.cpu_spike_percent", d.CPUSpikePercent)
	v.SetDefault("detectors.trend_samples", d.TrendSamples)
	v.SetDefault("detectors.trend_factor", d.TrendFactor)
	v.SetDefault("detectors.ml_enabled", d.MLEnabled)
	v.SetDefault("detectors.ml_contamination", d.ML.Contamination)
	v.SetDefault("detectors.ml_min_samples", d.ML.MinSamples)
	v.SetDefault("detectors.ml_trees", d.ML.Trees)
	v.SetDefault("detectors.ml_refit_interval", d.ML.RefitInterval.String())
	v.SetDefault("detectors.ml_seed", d.ML.Seed)

	v.SetDefault("remediation.enabled", true)
	v.SetDefault("remediation.cooldown", "0s")

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "aegisnet-agent"
	}
	v.SetDefault("agent.enabled", false)
	v.SetDefault("agent.id", hostname)
	v.SetDefault("agent.interval", "1s")
	v.SetDefault("agent.top_processes", 10)
	v.SetDefault("agent.register_self", true)
	v.SetDefault("agent.disk_path", "/")

	v.SetDefault("windows.enabled", false)
	v.SetDefault("windows.size", 3)
	v.SetDefault("windows.log_dir", "logs")
	v.SetDefault("windows.attack_flag_path", "attack_status.json")

	v.SetDefault("simulation.interval", "1s")
	v.SetDefault("simulation.duration", 10)

	v.SetDefault("archive.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
}

// ErrNoConfigFile is returned by Watch when there is no file to watch
var ErrNoConfigFile = errors.New("no configuration file to watch")

// Load reads path (optional; empty or missing means defaults), applies
// AEGISNET_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	v, _, err := newViper(path)
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

// Watch calls onChange with every re-read of path. A reload that fails
// to decode or validate is passed as err and the caller keeps its old
// configuration.
func Watch(path string, onChange func(Config, error)) error {
	v, found, err := newViper(path)
	if err != nil {
		return err
	}
	if !found {
		return ErrNoConfigFile
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(decode(v))
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) (*viper.Viper, bool, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, false, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return v, false, nil
		}
		return nil, false, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, true, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidationError lists every invalid setting
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks ranges and cross-field rules
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateLimitBurst <= 0 {
		add("server.rate_limit_rps and server.rate_limit_burst must be positive")
	}
	if c.Auth.Enabled && c.Auth.Secret != "" && len(c.Auth.Secret) < 32 {
		add("auth.secret must be at least 32 bytes")
	}
	if c.Store.HistoryCapacity <= 0 {
		add("store.history_capacity must be positive")
	}

	d := c.Detectors
	if _, err := detectors.ParseStrategy(d.DDoSStrategy); err != nil {
		add("detectors.ddos_strategy: %v", err)
	}
	if d.DDoSRatio <= 0 {
		add("detectors.ddos_ratio must be positive")
	}
	if d.DDoSRatioWindow < 2 {
		add("detectors.ddos_ratio_window must be at least 2")
	}
	if d.DDoSThresholdWindow < 1 {
		add("detectors.ddos_threshold_window must be at least 1")
	}
	if d.TrendSamples < 2 || d.TrendSamples%2 != 0 {
		add("detectors.trend_samples must be an even number of at least 2")
	}
	if d.TrendSamples > c.Store.HistoryCapacity {
		add("detectors.trend_samples exceeds store.history_capacity")
	}
	if d.MLContamination <= 0 || d.MLContamination >= 0.5 {
		add("detectors.ml_contamination must be in (0, 0.5)")
	}
	if d.MLMinSamples < 2 {
		add("detectors.ml_min_samples must be at least 2")
	}
	if d.MLRefitInterval < 0 {
		add("detectors.ml_refit_interval must not be negative")
	}
	if c.Remediation.Cooldown < 0 {
		add("remediation.cooldown must not be negative")
	}

	if c.Agent.Enabled {
		if c.Agent.ID == "" {
			add("agent.id is required when the agent is enabled")
		}
		if c.Agent.Interval <= 0 {
			add("agent.interval must be positive")
		}
	}
	if c.Windows.Enabled && c.Windows.Size < 1 {
		add("windows.size must be at least 1")
	}
	if c.Simulation.Interval <= 0 {
		add("simulation.interval must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		add("logging.format must be json or console")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// DetectorConfig maps the detector settings onto the detector package
func (c Config) DetectorConfig() detectors.Config {
	d := c.Detectors
	strategy, _ := detectors.ParseStrategy(d.DDoSStrategy)
	return detectors.Config{
		DDoSStrategy:    strategy,
		DDoSRatio:       d.DDoSRatio,
		DDoSRatioWindow: d.DDoSRatioWindow,
		ThresholdWindow: d.DDoSThresholdWindow,
		Thresholds: detectors.Thresholds{
			Packets: d.PacketThreshold,
			Bytes:   d.ByteThreshold,
			Drops:   d.DropThreshold,
		},
		RogueCPUPercent: d.RogueCPUPercent,
		KnownProcesses:  d.KnownProcesses,
		MaxOutbound:     d.MalwareOutboundConnections,
		CPUSpikePercent: d.CPUSpikePercent,
		TrendSamples:    d.TrendSamples,
		TrendFactor:     d.TrendFactor,
		MLEnabled:       d.MLEnabled,
		ML: detectors.MLConfig{
			MinSamples:    d.MLMinSamples,
			Contamination: d.MLContamination,
			Trees:         d.MLTrees,
			Seed:          d.MLSeed,
			RefitInterval: d.MLRefitInterval,
		},
	}
}
