package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/pricematch/internal/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:    "init",
				Aliases: []string{"i"},
				Usage:   "Write a configuration file with the defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (.kdl or .toml)",
						Value:   config.DefaultConfigFile,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite existing configuration file",
					},
				},
				Action: configInitCommand,
			},
			{
				Name:    "show",
				Aliases: []string{"s"},
				Usage:   "Show the effective configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: kdl, toml",
						Value:   "kdl",
					},
				},
				Action: configShowCommand,
			},
			{
				Name:   "validate",
				Usage:  "Check the configuration file",
				Action: configValidateCommand,
			},
		},
	}
}

func configInitCommand(c *cli.Context) error {
	output := c.String("output")
	if !c.Bool("force") {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", output)
		}
	}

	var content []byte
	switch strings.ToLower(filepath.Ext(output)) {
	case ".toml":
		data, err := config.ToTOML(config.Default())
		if err != nil {
			return fmt.Errorf("failed to generate config: %w", err)
		}
		content = data
	default:
		content = []byte(config.ToKDL(config.Default()))
	}

	if err := os.WriteFile(output, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Configuration file created: %s\n", output)
	return nil
}

func configShowCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	switch c.String("format") {
	case "kdl":
		fmt.Fprint(c.App.Writer, config.ToKDL(cfg))
	case "toml":
		data, err := config.ToTOML(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(c.App.Writer, string(data))
	default:
		return fmt.Errorf("unsupported format: %s", c.String("format"))
	}
	return nil
}

func configValidateCommand(c *cli.Context) error {
	configPath := c.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(c.App.Writer, "Configuration validation failed: %v\n", err)
		return err
	}

	var warnings []string
	if cfg.Semantic.Enabled && !cfg.Semantic.Available() {
		warnings = append(warnings, fmt.Sprintf("semantic matching is enabled but %s is not set", cfg.Semantic.APIKeyEnv))
	}
	if cfg.Semantic.AcceptThreshold > cfg.Semantic.SkipThreshold {
		warnings = append(warnings, "semantic.accept_threshold is above semantic.skip_threshold")
	}
	if cfg.Learning.Enabled && cfg.Learning.Database == "" {
		warnings = append(warnings, "learning is enabled without a database, corrections are lost on exit")
	}

	fmt.Fprintf(c.App.Writer, "Configuration %s is valid\n", configPath)
	for _, w := range warnings {
		fmt.Fprintf(c.App.Writer, "  warning: %s\n", w)
	}
	return nil
}
