package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cowbump/internal"
	"github.com/starford/cowbump/internal/catalog"
	pkgconfig "github.com/starford/cowbump/pkg/config"
)

// session is the per-invocation state shared by subcommands.
type session struct {
	cfg    *internal.Config
	logger *slog.Logger
	cat    *catalog.Catalog
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// openSession loads config and the catalog. root, when set, overrides the
// configured collection root.
func openSession(cmd *cli.Command, root string) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if root != "" {
		cfg.Collection.Root = root
	}
	logger := internal.NewLogger(cfg)
	slog.SetDefault(logger)

	cat, err := internal.OpenCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, cat: cat}, nil
}

// mutate opens a session, applies fn and saves the snapshot.
func mutate(cmd *cli.Command, fn func(s *session) error) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return s.cat.Save()
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.ServeMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "cowbump",
		Usage: "Tag, query and sequence an image collection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("COWBUMP_CONFIG"),
			},
		},
		Commands: commands(),
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
