package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stockdeck/internal/api"
	"stockdeck/internal/cache"
	"stockdeck/internal/config"
	"stockdeck/internal/logging"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Client *api.Client
	Cache  *cache.ViewCache
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
		Client: api.NewClient(api.ClientConfig{
			BaseURL:   cfg.Backend.BaseURL,
			AuthToken: cfg.Backend.AuthToken,
			Timeout:   cfg.Backend.Timeout,
		}),
	}

	if cfg.Cache.Enabled {
		store, err := cache.NewSQLiteStore(cfg.Cache.Path)
		if err != nil {
			logger.Warn().Err(err).Msg("View cache unavailable, views will paint on first fetch only")
		} else {
			app.Cache = cache.NewViewCache(store)
			logger.Debug().Str("path", cfg.Cache.Path).Msg("View cache initialized")
		}
	}

	rootCmd := &cobra.Command{
		Use:   "stockdeck",
		Short: "Stockdeck - live stock dashboard in the terminal",
		Long: `Stockdeck is a terminal stock dashboard.

It keeps a live instrument list in sync with a dashboard backend over
periodic snapshots and a websocket push channel, smoothing displayed
prices between real updates. Views are cached locally so a dashboard
repaints instantly on restart.

Use 'stockdeck watch' for the live view, 'stockdeck search' for one-shot
queries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stockdeck)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newSectorsCmd(app))
	rootCmd.AddCommand(newQuoteCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Stockdeck v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Backend")
	output.Printf("  Base URL:        %s\n", cfg.Backend.BaseURL)
	output.Printf("  Stream URL:      %s\n", cfg.Backend.StreamURL)
	output.Printf("  Timeout:         %s\n", cfg.Backend.Timeout)
	output.Println()

	output.Bold("Engine")
	output.Printf("  Fetch Interval:    %s\n", cfg.Engine.FetchInterval)
	output.Printf("  Simulate Interval: %s\n", cfg.Engine.SimulateInterval)
	output.Printf("  Tape Interval:     %s\n", cfg.Engine.TapeInterval)
	output.Printf("  Default Limit:     %d\n", cfg.Engine.DefaultLimit)
	output.Println()

	output.Bold("Cache")
	output.Printf("  Enabled:         %v\n", cfg.Cache.Enabled)
	output.Printf("  Path:            %s\n", cfg.Cache.Path)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  Console:         %v\n", cfg.Logging.Console)
	output.Printf("  File:            %v\n", cfg.Logging.File)
}
