// Command hunter runs a standalone prime constellation search from a yaml
// configuration file, printing finds and periodic statistics.
package main

import (
	"fmt"
	"math"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mahdiidarabi/constellation/internal/fermat"
	"github.com/mahdiidarabi/constellation/pkg/constellation"
)

type config struct {
	Workers         int     `mapstructure:"workers" yaml:"workers"`
	Pattern         string  `mapstructure:"pattern" yaml:"pattern"`
	PrimeTableLimit uint64  `mapstructure:"prime_table_limit" yaml:"prime_table_limit"`
	PrimorialNumber int     `mapstructure:"primorial_number" yaml:"primorial_number"`
	PrimorialOffset uint64  `mapstructure:"primorial_offset" yaml:"primorial_offset"`
	SieveBits       int     `mapstructure:"sieve_bits" yaml:"sieve_bits"`
	Difficulty      uint    `mapstructure:"difficulty" yaml:"difficulty"`
	KMin            int     `mapstructure:"k_min" yaml:"k_min"`
	RefreshInterval float64 `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	MetricsAddress  string  `mapstructure:"metrics_address" yaml:"metrics_address"`
	LogLevel        string  `mapstructure:"log_level" yaml:"log_level"`
}

func setDefaults() {
	viper.SetDefault("workers", 0)
	viper.SetDefault("pattern", "0, 2, 6, 8, 12, 18, 20")
	viper.SetDefault("prime_table_limit", 16777216)
	viper.SetDefault("primorial_number", 120)
	viper.SetDefault("primorial_offset", 0)
	viper.SetDefault("sieve_bits", 25)
	viper.SetDefault("difficulty", 1024)
	viper.SetDefault("k_min", 0)
	viper.SetDefault("refresh_interval", 5.0)
	viper.SetDefault("metrics_address", "")
	viper.SetDefault("log_level", "info")
}

func loadConfig(path string) (config, error) {
	setDefaults()
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("hunter")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return config{}, err
		}
	}
	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func setupLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)
	return logger
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "hunter",
		Short: "Search for prime constellations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to yaml configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the default configuration as yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			setDefaults()
			var cfg config
			if err := viper.Unmarshal(&cfg); err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config) error {
	logger := setupLogger(cfg.LogLevel)
	logger.Info("constellation hunter")

	pattern, err := constellation.ParsePattern(cfg.Pattern)
	if err != nil {
		return err
	}

	engine := constellation.New().WithLogger(logger)
	err = engine.SetParams(constellation.Params{
		Workers:              cfg.Workers,
		ConstellationPattern: pattern,
		PrimeTableLimit:      cfg.PrimeTableLimit,
		PrimorialNumber:      cfg.PrimorialNumber,
		PrimorialOffset:      cfg.PrimorialOffset,
		SieveSize:            1 << cfg.SieveBits,
	})
	if err != nil {
		return err
	}

	logger.Info("generating tables...")
	if err := engine.Init(); err != nil {
		return err
	}
	stats := engine.Stats()
	logger.WithFields(logrus.Fields{
		"primes":     stats.PrimeTableSize,
		"table_s":    fmt.Sprintf("%.6f", stats.PrimeTableGenerationTime),
		"inverses_s": fmt.Sprintf("%.6f", stats.ModularInversesGenerationTime),
		"difficulty": cfg.Difficulty,
	}).Info("tables ready")

	if err := engine.StartWorkers(); err != nil {
		return err
	}
	defer engine.Stop()

	if cfg.MetricsAddress != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(constellation.NewCollector(engine))
		go func() {
			handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
			if err := http.ListenAndServe(cfg.MetricsAddress, handler); err != nil {
				logger.WithError(err).Warn("metrics server stopped")
			}
		}()
		logger.WithField("address", cfg.MetricsAddress).Info("serving metrics")
	}

	kMin := cfg.KMin
	if kMin == 0 {
		kMin = len(pattern)
	}
	targetMin := new(big.Int).Lsh(big.NewInt(1), cfg.Difficulty)
	targetMax := new(big.Int).Lsh(targetMin, 1)
	warnings, err := engine.AddJob(constellation.Job{
		ID:                1,
		ClearPreviousJobs: true,
		Pattern:           pattern,
		TargetMin:         targetMin,
		TargetMax:         targetMax,
		KMin:              kMin,
		PatternMin:        make([]bool, len(pattern)),
	})
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	logger.WithField("k_min", kMin).Info("search started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	outputTicker := time.NewTicker(250 * time.Millisecond)
	defer outputTicker.Stop()
	statsTicker := time.NewTicker(time.Duration(cfg.RefreshInterval * float64(time.Second)))
	defer statsTicker.Stop()

	for {
		select {
		case <-signals:
			logger.Info("interrupted, stopping")
			return nil
		case <-outputTicker.C:
			for out := engine.PopOutput(); out != nil; out = engine.PopOutput() {
				reportFind(logger, out)
			}
		case <-statsTicker.C:
			printStats(logger, engine.Stats(), len(pattern))
		}
	}
}

// reportFind logs an accepted tuple, re-checking each member with
// Miller-Rabin before announcing it.
func reportFind(logger *logrus.Logger, out *constellation.Output) {
	confirmed := true
	m := new(big.Int)
	for _, o := range out.Pattern {
		m.SetUint64(o)
		m.Add(m, out.N)
		if !fermat.IsPrimeMillerRabin(m, 32) {
			confirmed = false
			break
		}
	}
	entry := logger.WithFields(logrus.Fields{
		"n":       out.N.String(),
		"pattern": out.Pattern,
		"job":     out.JobID,
		"worker":  out.WorkerID,
	})
	if confirmed {
		entry.Infof("%d-tuple found", len(out.Pattern))
	} else {
		entry.Warn("tuple failed Miller-Rabin confirmation")
	}
}

// printStats emits the periodic status line: candidates per second, the
// candidate-to-prime ratio r, the tuple counts, and the estimated average
// time to find a full tuple (r^L / cps).
func printStats(logger *logrus.Logger, stats constellation.Stats, patternLen int) {
	elapsed := time.Since(stats.SearchStartInstant).Seconds()
	if elapsed <= 0 || len(stats.TupleCounts) == 0 {
		return
	}
	cps := float64(stats.TupleCounts[0]) / elapsed
	entry := logger.WithFields(logrus.Fields{
		"elapsed": fmt.Sprintf("%.1f", elapsed),
		"cps":     fmt.Sprintf("%.1f", cps),
		"tuples":  stats.TupleCounts,
	})
	if len(stats.TupleCounts) > 1 && stats.TupleCounts[1] > 0 && cps > 0 {
		r := float64(stats.TupleCounts[0]) / float64(stats.TupleCounts[1])
		estimate := math.Pow(r, float64(patternLen)) / cps
		entry = entry.WithFields(logrus.Fields{
			"r":        fmt.Sprintf("%.2f", r),
			"estimate": formatDuration(estimate),
		})
	}
	entry.Info("searching")
}

// formatDuration renders a duration in seconds at a human scale.
func formatDuration(seconds float64) string {
	switch {
	case seconds < 0.001:
		return fmt.Sprintf("%.0f µs", 1e6*seconds)
	case seconds < 1:
		return fmt.Sprintf("%.0f ms", 1e3*seconds)
	case seconds < 60:
		return fmt.Sprintf("%.2f s", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.2f min", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%.2f h", seconds/3600)
	case seconds < 31556952:
		return fmt.Sprintf("%.2f d", seconds/86400)
	default:
		return fmt.Sprintf("%.3f y", seconds/31556952)
	}
}
