package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/raido/internal"
	"github.com/starford/raido/internal/commands"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
	pkgconfig "github.com/starford/raido/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, *slog.Logger, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	level := cfg.App.LogLevel
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// runBatch executes one registry maintenance verb and maps its outcome to a
// process exit code: 0 clean, 1 recorded failures, 2 fatal.
func runBatch(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	opts := commands.Options{
		DriverFilter: cmd.String("driver"),
		Service:      cmd.String("service"),
		Host:         cmd.String("host"),
		Logo:         cmd.String("logo"),
		Issue:        cmd.String("issue"),
		Categories:   cmd.StringSlice("categories"),
		Force:        cmd.Bool("force"),
		Debug:        cmd.Bool("debug"),
		Unofficial:   cmd.Bool("unofficial"),
		Small:        cmd.Bool("small"),
	}
	args := cmd.Args().Slice()
	if cmd.Name == "add" {
		opts.Args = args
	} else if len(args) > 0 {
		opts.PathSpec = args[0]
	}

	code, err := commands.Execute(ctx, cmd.Name, opts, cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), code)
	}
	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	store, err := storage.NewFS(".")
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	regStore := registry.NewStore(cfg.Registry.Path, cfg.Registry.FailuresDir, logger)
	reg, err := regStore.Load()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	defer db.Close()
	if err := index.Sync(db, reg, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return mcpserver.New(store, db).ServeStdio()
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	}
}

func batchFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringFlag{
			Name:  "driver",
			Usage: "Act only on providers using this driver, or 'none' for everything",
		},
		&cli.BoolFlag{
			Name:  "small",
			Usage: "Skip providers with many services when marking the whole tree",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Rewrite documents even when their content is unchanged",
		},
	)
}

func batchCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "[path spec]",
		Action:    runBatch,
		Flags:     batchFlags(),
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "raido",
		Usage: "API description registry maintainer: harvests, validates, and serves OpenAPI/Swagger/AsyncAPI documents",
		Commands: []*cli.Command{
			batchCommand("update", "Re-fetch and refresh tracked API documents"),
			batchCommand("validate", "Re-validate materialized documents without fetching"),
			batchCommand("check", "Verify entry bookkeeping against the document tree"),
			batchCommand("ci", "Full scan plus validation, for continuous integration"),
			batchCommand("deploy", "Rewrite the registry in canonical sorted form"),
			{
				Name:      "add",
				Usage:     "Register a new API document from a URL",
				ArgsUsage: "<url>",
				Action:    runBatch,
				Flags: append(batchFlags(),
					&cli.StringFlag{
						Name:  "service",
						Usage: "Service name for the new entry",
					},
					&cli.StringFlag{
						Name:  "host",
						Usage: "Provider name override (defaults to the document host)",
					},
					&cli.BoolFlag{
						Name:  "unofficial",
						Usage: "Mark the entry as community-maintained",
					},
					&cli.StringFlag{
						Name:  "logo",
						Usage: "Logo URL patched into the document",
					},
					&cli.StringFlag{
						Name:  "issue",
						Usage: "Tracking issue reference patched into the document",
					},
					&cli.StringSliceFlag{
						Name:  "categories",
						Usage: "Category tags patched into the document",
					},
				),
			},
			{
				Name:   "serve",
				Usage:  "Serve the registry over HTTP with search and live updates",
				Action: runServe,
				Flags:  commonFlags(),
			},
			{
				Name:   "mcp",
				Usage:  "Expose the registry to LLM clients over MCP stdio",
				Action: runMCP,
				Flags:  commonFlags(),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
