// Package cli provides the command-line interface for coursechat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/coursechat/internal/config"
	"github.com/raphaelgruber/coursechat/internal/db"
	"github.com/raphaelgruber/coursechat/internal/generator"
	"github.com/raphaelgruber/coursechat/internal/llm"
	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/parser"
	"github.com/raphaelgruber/coursechat/internal/retrieval"
	"github.com/raphaelgruber/coursechat/internal/service"
	"github.com/raphaelgruber/coursechat/internal/session"
	"github.com/raphaelgruber/coursechat/internal/tools"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logging and db client
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	dbClient *db.Client

	// Lazy-initialized LLM components
	embedder *llm.Embedder
	model    *llm.Model

	// Shared across one command invocation
	collector *metrics.Collector
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "coursechat",
	Short: "Chat with your course materials",
	Long: `Coursechat indexes course documents into a vector database and answers
questions about them with a tool-using LLM.

Ingest plain-text course scripts, then ask questions on the command line,
in an interactive chat, or through the HTTP server.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)

		// Remote mode talks to a running server, no local db needed
		if f := cmd.Flags().Lookup("server"); f != nil && f.Value.String() != "" {
			return nil
		}

		ctx := context.Background()
		dbClient, err = db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// querier is the query surface shared by the in-process assistant and
// the remote server client.
type querier interface {
	Query(ctx context.Context, question, sessionID string) (*service.QueryResponse, error)
}

// getCollector returns the process-wide metrics collector.
func getCollector() *metrics.Collector {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return collector
}

// getStore creates the retrieval store with lazy LLM initialization.
func getStore(ctx context.Context) (*retrieval.Store, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		embedder.SetCollector(getCollector())
	}
	store := retrieval.NewStore(embedder, dbClient, cfg.MaxResults, logger)
	store.SetCollector(getCollector())
	return store, nil
}

// getAssistant wires the full query pipeline.
func getAssistant(ctx context.Context) (*service.Assistant, error) {
	store, err := getStore(ctx)
	if err != nil {
		return nil, err
	}
	if model == nil {
		model, err = llm.NewModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
		model.SetCollector(getCollector())
	}

	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewSearchTool(store))
	registry.Register(tools.NewOutlineTool(store))

	gen := generator.New(model, registry, cfg.MaxToolRounds, logger)
	sessions := session.NewManager(cfg.MaxHistory)
	return service.NewAssistant(gen, store, sessions, getCollector(), logger), nil
}

// getIngestor wires the ingestion pipeline.
func getIngestor(ctx context.Context) (*service.Ingestor, error) {
	store, err := getStore(ctx)
	if err != nil {
		return nil, err
	}
	chunkCfg := parser.ChunkConfig{MaxSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	return service.NewIngestor(store, dbClient, chunkCfg, getCollector(), logger), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(chatCmd)
}
