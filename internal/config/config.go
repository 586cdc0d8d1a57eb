// Package config loads the service configuration that wraps the pure
// analysis core: server binding, data directory, log level, the
// overridable defaults for replay rules, and a starting Elo rating value.
// Nothing outside this package reads StartingEloRating: the store seeds a
// new user's Elo state from types.DefaultDecisionEloState. Layering follows the teacher's flag.* shape, generalized to
// viper's file/env/flag precedence chain.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dawgsrlife/temper-core/pkg/types"
)

// Config is the fully resolved service configuration.
type Config struct {
	Host     string
	Port     int
	DataDir  string
	LogLevel string

	WebSocketPath  string
	EnableMetrics  bool
	MetricsPath    string

	ReplayRules       types.ReplayRules
	StartingEloRating decimal.Decimal
}

// Default returns the documented defaults, matching the teacher's
// flag.String/flag.Int default values and spec.md's default replay rules
// and starting Elo rating.
func Default() Config {
	return Config{
		Host:          "localhost",
		Port:          8080,
		DataDir:       "./data",
		LogLevel:      "info",
		WebSocketPath: "/ws",
		EnableMetrics: true,
		MetricsPath:   "/metrics",

		ReplayRules:       types.DefaultReplayRules(),
		StartingEloRating: types.DefaultDecisionEloState().Rating,
	}
}

// Load resolves configuration from, in increasing precedence: compiled-in
// defaults, an optional YAML file at configPath (skipped if empty or
// missing), environment variables prefixed TEMPER_, and flags already
// parsed into fs. Mirrors the viper+pflag pairing used for layered config
// across the retrieved corpus.
func Load(configPath string, fs *pflag.FlagSet) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("TEMPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("loading config file %s: %w", configPath, err)
			}
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("binding flags: %w", err)
		}
	}

	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.DataDir = v.GetString("dataDir")
	cfg.LogLevel = v.GetString("logLevel")
	cfg.WebSocketPath = v.GetString("websocketPath")
	cfg.EnableMetrics = v.GetBool("enableMetrics")
	cfg.MetricsPath = v.GetString("metricsPath")

	if s := v.GetString("replay.maxDailyLossAbsolute"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Config{}, fmt.Errorf("parsing replay.maxDailyLossAbsolute: %w", err)
		}
		cfg.ReplayRules.MaxDailyLossAbsolute = d
	}
	if n := v.GetInt("replay.maxTradesPerDay"); n != 0 {
		cfg.ReplayRules.MaxTradesPerDay = n
	}
	if n := v.GetInt64("replay.revengeWindowMs"); n != 0 {
		cfg.ReplayRules.RevengeWindowMs = n
	}
	if s := v.GetString("replay.maxPositionSizeMultiple"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Config{}, fmt.Errorf("parsing replay.maxPositionSizeMultiple: %w", err)
		}
		cfg.ReplayRules.MaxPositionSizeMultiple = d
	}
	if s := v.GetString("startingEloRating"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Config{}, fmt.Errorf("parsing startingEloRating: %w", err)
		}
		cfg.StartingEloRating = d
	}

	return cfg, nil
}

func setViperDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dataDir", cfg.DataDir)
	v.SetDefault("logLevel", cfg.LogLevel)
	v.SetDefault("websocketPath", cfg.WebSocketPath)
	v.SetDefault("enableMetrics", cfg.EnableMetrics)
	v.SetDefault("metricsPath", cfg.MetricsPath)
	v.SetDefault("replay.maxDailyLossAbsolute", cfg.ReplayRules.MaxDailyLossAbsolute.String())
	v.SetDefault("replay.maxTradesPerDay", cfg.ReplayRules.MaxTradesPerDay)
	v.SetDefault("replay.revengeWindowMs", cfg.ReplayRules.RevengeWindowMs)
	v.SetDefault("replay.maxPositionSizeMultiple", cfg.ReplayRules.MaxPositionSizeMultiple.String())
	v.SetDefault("startingEloRating", cfg.StartingEloRating.String())
}
