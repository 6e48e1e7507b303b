package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/teilomillet/wave/config"
	waveerrors "github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "wave.yaml", "Path to configuration file")
	envFile    = flag.String("env", ".env", "Optional dotenv file loaded before the configuration")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("wave %s\n", Version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, options{
		configPath:   *configFile,
		explicit:     flagSet("config"),
		envPath:      *envFile,
		validateOnly: *validate,
	})
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "wave: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	explicit     bool
	envPath      string
	validateOnly bool
}

// run serves until ctx is cancelled. Every deferred cleanup has run by the
// time it returns.
func run(ctx context.Context, opts options) error {
	if err := loadEnv(opts.envPath); err != nil {
		return fmt.Errorf("load %s: %w", opts.envPath, err)
	}

	cfg, watcher, err := loadConfig(opts.configPath, opts.explicit)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if watcher != nil {
		defer watcher.Close()
	}

	if opts.validateOnly {
		fmt.Println("Configuration is valid")
		return nil
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()
	waveerrors.SetLogger(logger)

	serverOpts := []server.Option{server.WithVersion(Version)}
	if watcher != nil {
		serverOpts = append(serverOpts, server.WithWatcher(watcher))
	}

	srv, err := server.New(cfg, logger, serverOpts...)
	if err != nil {
		logger.Error("Server initialization failed",
			zap.Error(err),
			zap.String("config_path", opts.configPath),
		)
		return err
	}

	logger.Info("Starting wave",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server error", zap.Error(err))
		return err
	}
	return nil
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// loadEnv reads a dotenv file into the environment. Variables already set
// win. A missing file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// loadConfig watches path when it exists. Without a file the defaults are
// used, unless the path was given explicitly.
func loadConfig(path string, explicit bool) (*config.Config, *config.ConfigWatcher, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			cfg := config.DefaultConfig()
			return cfg, nil, cfg.Validate()
		}
		return nil, nil, err
	}

	watcher, err := config.NewConfigWatcher(path, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}
	return watcher.GetCurrentConfig(), watcher, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	if cfg.Format == "text" {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zcfg.Build()
}
