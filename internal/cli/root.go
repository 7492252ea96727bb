// Package cli wires the neuralquery subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuralquery/internal/app"
	"github.com/kailas-cloud/neuralquery/internal/config"
	"github.com/kailas-cloud/neuralquery/internal/domain"
	logpkg "github.com/kailas-cloud/neuralquery/internal/logger"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	env        string
	configPath string
	dotEnv     string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "neuralquery",
		Short: "Semantic search over a small corpus of technical tips",
		Long: `neuralquery embeds a fixed corpus of Docker, Python and AWS tips into a
vector index and answers natural-language queries over HTTP.

Example usage:
  neuralquery ingest                     # Build the index
  neuralquery serve                      # Start the HTTP API
  neuralquery search "slim docker image" # Query from the terminal
  neuralquery search "slim docker image" --server http://localhost:8000`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.env, "env", config.GetEnv(), "environment; selects config/{env}.yaml")
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "explicit config file (overrides --env lookup)")
	root.PersistentFlags().StringVar(&g.dotEnv, "dotenv", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newServeCommand(g),
		newIngestCommand(g),
		newSearchCommand(g),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return run(NewRootCommand(), os.Args[1:], os.Stderr)
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			fmt.Fprintf(stderr, "Configuration Error: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// loadConfig resolves .env, then the YAML config.
func (g *globalFlags) loadConfig() (config.Config, error) {
	if g.dotEnv != "" {
		if err := config.LoadDotEnv(g.dotEnv); err != nil {
			return config.Config{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
	}
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	return config.Load(g.env)
}

// bootstrap loads config and logger and builds the shared dependencies.
// The returned cleanup closes the backend and flushes the logger.
func (g *globalFlags) bootstrap() (*app.App, func(), error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, func() {}, err
	}

	logger, err := logpkg.NewLogger(loggerEnv(g.env), cfg.Logging.Level)
	if err != nil {
		return nil, func() {}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, func() {}, err
	}
	return a, func() {
		a.Close()
		_ = logger.Sync()
	}, nil
}

// loggerEnv maps unknown environments to the development logger.
func loggerEnv(env string) string {
	switch env {
	case "prod", "local", "dev", "docker", "test":
		return env
	default:
		return "dev"
	}
}

func logStart(a *app.App, command string) {
	a.Logger.Info("Starting neuralquery",
		zap.String("command", command),
		zap.String("backend_driver", a.Config.Backend.Driver),
		zap.String("collection", a.Config.Backend.Collection),
		zap.String("embedding_provider", a.Config.Embedding.Provider),
	)
}
