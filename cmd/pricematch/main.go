package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/pricematch/internal/config"
	"github.com/standardbeagle/pricematch/internal/debug"
	"github.com/standardbeagle/pricematch/internal/version"
)

var Version = version.Version

const cfgKey = "pricematch.config"

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if c.IsSet("db") {
		cfg.Learning.Database = c.String("db")
	}
	return cfg, nil
}

// configFrom returns the config loaded by the Before hook.
func configFrom(c *cli.Context) (*config.Config, error) {
	if cfg, ok := c.App.Metadata[cfgKey].(*config.Config); ok {
		return cfg, nil
	}
	return loadConfigWithOverrides(c)
}

func newApp() *cli.App {
	var cleanupFuncs []func()

	app := &cli.App{
		Name:                   "pricematch",
		Usage:                  "Match renovation survey items against a price book",
		Version:                Version,
		UseShortOptionHandling: true,
		Metadata:               map[string]interface{}{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml)",
				Value:   config.DefaultConfigFile,
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Correction database (overrides config, \":memory:\" for none on disk)",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug output to a temp log file",
			},
		},
		Commands: []*cli.Command{
			matchCommand(),
			correctCommand(),
			correctionsCommand(),
			configCommand(),
			{
				Name:  "version",
				Usage: "Show detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					return nil
				},
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
				cleanupFuncs = append(cleanupFuncs, func() { _ = debug.CloseDebugLog() })
			} else {
				// PRICEMATCH_DEBUG=1 logs to stderr
				debug.SetDebugOutput(c.App.ErrWriter)
			}

			// config subcommands report their own load errors
			if c.Args().First() == "config" {
				return nil
			}
			cfg, err := loadConfigWithOverrides(c)
			if err != nil {
				return err
			}
			c.App.Metadata[cfgKey] = cfg
			return nil
		},
		After: func(c *cli.Context) error {
			for i := len(cleanupFuncs) - 1; i >= 0; i-- {
				cleanupFuncs[i]()
			}
			cleanupFuncs = nil
			return nil
		},
	}
	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
