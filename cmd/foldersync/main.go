package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ClaudioK5/Synchronization-Folder/internal/actionlog"
	"github.com/ClaudioK5/Synchronization-Folder/internal/config"
	"github.com/ClaudioK5/Synchronization-Folder/internal/scheduler"
	"github.com/ClaudioK5/Synchronization-Folder/internal/sync"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Sync flags
	exclude []string
	compare string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "foldersync",
	Short: "Keep a replica folder identical to a source folder",
	Long: `foldersync periodically makes a replica directory tree an exact copy of a
source directory tree. Files and directories missing from the replica are
copied, entries no longer in the source are deleted, and files whose content
changed are overwritten.

Every change is appended to sync_log.txt in the log directory and echoed to
standard output.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [SOURCE REPLICA LOG_DIR INTERVAL]",
	Short: "Synchronize forever, pausing INTERVAL seconds between cycles",
	Long: `Run performs a synchronization cycle, waits INTERVAL seconds, and repeats
until interrupted with SIGINT or SIGTERM.

The folders can be given as four positional arguments or through --config.`,
	Args: validArgs,
	RunE: runForever,
}

var syncCmd = &cobra.Command{
	Use:   "sync [SOURCE REPLICA LOG_DIR INTERVAL]",
	Short: "Perform a single synchronization cycle",
	Long: `Sync performs exactly one synchronization cycle and exits. The exit status
is non-zero when any entry could not be synchronized.`,
	Args: validArgs,
	RunE: runOnce,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("foldersync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/foldersync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	for _, cmd := range []*cobra.Command{runCmd, syncCmd} {
		cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "glob pattern of entries to leave alone (repeatable)")
		cmd.Flags().StringVar(&compare, "compare", "", "change detection mode (size, hash)")
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(versionCmd)
}

// validArgs accepts either no positional arguments or all four
func validArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 0 && len(args) != 4 {
		return fmt.Errorf("expected SOURCE REPLICA LOG_DIR INTERVAL, got %d argument(s)", len(args))
	}
	return nil
}

func runForever(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger(os.Stderr)

	cfg, err := loadConfig(args, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	actions, err := actionlog.Open(cfg.Paths.LogDir, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer actions.Close()

	err = scheduler.RunForever(ctx, cfg, actions, logger)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger(os.Stderr)

	cfg, err := loadConfig(args, logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	actions, err := actionlog.Open(cfg.Paths.LogDir, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer actions.Close()

	return syncOnce(ctx, cfg, actions, logger)
}

func syncOnce(ctx context.Context, cfg *config.Config, actions sync.ActionLogger, logger *slog.Logger) error {
	engine, err := sync.NewOSEngine(cfg, actions, logger)
	if err != nil {
		return err
	}

	report, err := engine.Cycle(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d entries failed to synchronize: %w", report.Failed, report.Err())
	}
	return nil
}

func setupLogger(w io.Writer) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Standard output carries the action log, so diagnostics go to w
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// loadConfig builds the configuration from the positional arguments when
// present, from the config file otherwise, then applies flag overrides.
func loadConfig(args []string, logger *slog.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if len(args) == 4 {
		interval, convErr := strconv.Atoi(args[3])
		if convErr != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", args[3], convErr)
		}
		cfg, err = config.FromArgs(args[0], args[1], args[2], interval)
	} else {
		configPath := cfgFile
		if configPath == "" {
			home, homeErr := os.UserHomeDir()
			if homeErr != nil {
				return nil, fmt.Errorf("failed to get user home directory: %w", homeErr)
			}
			configPath = fmt.Sprintf("%s/.config/foldersync/config.yaml", home)
		}
		logger.Info("loading configuration", "path", configPath)
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return nil, err
	}

	if len(exclude) > 0 || compare != "" {
		if len(exclude) > 0 {
			cfg.Sync.Exclude = append(cfg.Sync.Exclude, exclude...)
		}
		if compare != "" {
			cfg.Sync.Compare = config.CompareMode(compare)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	logger.Debug("configuration loaded",
		"source", cfg.Paths.Source,
		"replica", cfg.Paths.Replica,
		"log_file", cfg.LogFilePath(),
		"interval", cfg.IntervalDuration(),
		"compare", cfg.Sync.Compare)

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
