package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/dcmcache/internal/app"
	"github.com/zjrosen/dcmcache/internal/config"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/tracing"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
)

// defaultConfigPath is where a config is created on first run.
const defaultConfigPath = ".dcmcache/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "dcmcache",
	Short: "A local cache of DICOM slice datasets and their derived meshes",
	Long: `dcmcache imports directories of DICOM slices into a local cache, lists and
decodes the valid slices, projects their metadata and reconstructs surface
meshes through external tools. Run 'dcmcache serve' to expose the cache over
HTTP.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .dcmcache/config.yaml, then ~/.config/dcmcache/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (also enabled by DCMCACHE_DEBUG)")
	rootCmd.PersistentFlags().String("cache-root", "", "cache directory (overrides cache.root)")

	_ = viper.BindPFlag("cache.root", rootCmd.PersistentFlags().Lookup("cache-root"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("cache.root", defaults.Cache.Root)
	viper.SetDefault("workers.max", defaults.Workers.Max)
	viper.SetDefault("reconstruction.threshold", defaults.Reconstruction.Threshold)
	viper.SetDefault("reconstruction.reconstructor", defaults.Reconstruction.Reconstructor)
	viper.SetDefault("reconstruction.converter", defaults.Reconstruction.Converter)
	viper.SetDefault("reconstruction.timeout", defaults.Reconstruction.Timeout)
	viper.SetDefault("api.addr", defaults.API.Addr)
	viper.SetDefault("watcher.enabled", defaults.Watcher.Enabled)
	viper.SetDefault("watcher.debounce", defaults.Watcher.Debounce)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("log_level", defaults.LogLevel)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .dcmcache/config.yaml (current directory)
		// 2. ~/.config/dcmcache/config.yaml (user config)
		if _, err := os.Stat(defaultConfigPath); err == nil {
			viper.SetConfigFile(defaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "dcmcache"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .dcmcache/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if writeErr := config.WriteDefaultConfig(defaultConfigPath); writeErr == nil {
				viper.SetConfigFile(defaultConfigPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// configFileUsed returns the loaded config path, or the default location.
func configFileUsed() string {
	if path := viper.ConfigFileUsed(); path != "" {
		return path
	}
	return defaultConfigPath
}

func initLogging(cmd *cobra.Command, _ []string) error {
	if os.Getenv("DCMCACHE_DEBUG") == "" && !debugFlag {
		return nil
	}
	logPath := os.Getenv("DCMCACHE_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log.SetMinLevel(log.ParseLevel(cfg.LogLevel))
	cobra.OnFinalize(cleanup)

	log.Info(log.CatConfig, "dcmcache starting", "command", cmd.Name(), "config", viper.ConfigFileUsed())
	return nil
}

// session is an opened service plus what it takes to shut it down.
type session struct {
	svc     *app.Service
	tracing *tracing.Provider
}

// openSession validates the configuration and opens the cache.
func openSession(ctx context.Context, source owner.CommandSource, opts ...app.Option) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	opts = append([]app.Option{app.WithTracer(tp.Tracer()), app.WithSource(source)}, opts...)
	svc, err := app.Open(ctx, cfg, opts...)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	return &session{svc: svc, tracing: tp}, nil
}

func (s *session) Close() error {
	err := s.svc.Close()
	if tErr := s.tracing.Shutdown(context.Background()); err == nil {
		err = tErr
	}
	return err
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
