// Package main provides the HTTP server for coursechat.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/coursechat/internal/config"
	"github.com/raphaelgruber/coursechat/internal/db"
	"github.com/raphaelgruber/coursechat/internal/generator"
	"github.com/raphaelgruber/coursechat/internal/llm"
	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/parser"
	"github.com/raphaelgruber/coursechat/internal/retrieval"
	"github.com/raphaelgruber/coursechat/internal/server"
	"github.com/raphaelgruber/coursechat/internal/service"
	"github.com/raphaelgruber/coursechat/internal/session"
	"github.com/raphaelgruber/coursechat/internal/tools"
)

func main() {
	ingestOnStart := flag.Bool("ingest", true, "index the docs folder on startup")
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	logger.Info("starting coursechat-server", "port", cfg.ServerPort)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		cancel()
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := dbClient.InitSchema(ctx, cfg.EmbedDimension); err != nil {
		cancel()
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	cancel()
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		logger.Error("failed to init embedder", "error", err)
		os.Exit(1)
	}
	model, err := llm.NewModel(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to init model", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	embedder.SetCollector(collector)
	model.SetCollector(collector)

	store := retrieval.NewStore(embedder, dbClient, cfg.MaxResults, logger)
	store.SetCollector(collector)

	if *wipeDB {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := dbClient.WipeData(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		logger.Info("database wiped")
	}

	if *ingestOnStart && cfg.DocsPath != "" {
		chunkCfg := parser.ChunkConfig{MaxSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
		ingestor := service.NewIngestor(store, dbClient, chunkCfg, collector, logger)
		result, err := ingestor.AddCourseFolder(context.Background(), cfg.DocsPath, false)
		if err != nil {
			logger.Error("startup ingestion failed", "docs", cfg.DocsPath, "error", err)
			os.Exit(1)
		}
		logger.Info("startup ingestion complete",
			"added", result.CoursesAdded, "skipped", result.CoursesSkipped, "chunks", result.ChunksAdded)
	}

	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewSearchTool(store))
	registry.Register(tools.NewOutlineTool(store))

	gen := generator.New(model, registry, cfg.MaxToolRounds, logger)
	sessions := session.NewManager(cfg.MaxHistory)
	assistant := service.NewAssistant(gen, store, sessions, collector, logger)

	srv := server.New(cfg.ServerPort, assistant, collector, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(runCtx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
