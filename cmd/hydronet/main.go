package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"hydronet/internal/aggregation"
	"hydronet/internal/attribute"
	"hydronet/internal/codec"
	"hydronet/internal/config"
	"hydronet/internal/domain"
	"hydronet/internal/handler"
	"hydronet/internal/hub"
	"hydronet/internal/loader"
	"hydronet/internal/metrics"
	"hydronet/internal/repository/sqlite"
	"hydronet/internal/service"
	"hydronet/internal/topology"
	"hydronet/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "config file (default: search "+config.EnvConfigPath+" and standard locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	stages := flag.String("stages", "", "comma separated stages to run (overrides config)")
	answersPath := flag.String("answers", "", "YAML or JSON file of decision answers to apply after the run")
	dumpPath := flag.String("dump", "", "write an element graph dump after the run (.json, .yaml, optionally .sz)")
	serve := flag.Bool("serve", false, "serve the HTTP API after the first run")
	watch := flag.Bool("watch", false, "re-run when the topology file changes (implies -serve)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [topology.yaml]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, cfgPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hydronet: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *stages != "" {
		cfg.Pipeline.Stages = strings.Split(*stages, ",")
	}
	if *watch {
		cfg.Server.Watch = true
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	if cfgPath != "" {
		logger.Info("config loaded", slog.String("path", cfgPath))
	}
	logger.Debug(cfg.Summary())

	topologyPath := flag.Arg(0)
	if topologyPath == "" && !*serve && !cfg.Server.Watch {
		flag.Usage()
		os.Exit(2)
	}

	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", slog.String("path", cfg.Database.Path), slog.Any("error", err))
		os.Exit(1)
	}
	defer repo.Close()

	resolver := attribute.NewResolver(domain.SchemaOf, logger)
	pipeline := aggregation.DefaultPipeline(resolver, cfg.Pipeline.Options, logger)
	if err := pipeline.Restrict(cfg.Pipeline.Stages); err != nil {
		logger.Error("invalid stage selection", slog.Any("error", err))
		os.Exit(1)
	}

	reg := metrics.DefaultRegistry()
	eventBus := service.NewEventBus()
	svc := service.NewSimplifier(pipeline, resolver, repo, reg, eventBus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Replay {
		n, err := svc.Replay(ctx)
		if err != nil {
			logger.Error("failed to replay answers", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("answers replayed", slog.Int("count", n))
	}

	if topologyPath != "" {
		report, err := loadAndSimplify(ctx, svc, topologyPath)
		if err != nil {
			logger.Error("simplification failed", slog.String("topology", topologyPath), slog.Any("error", err))
			os.Exit(1)
		}
		if *answersPath != "" {
			if report.Pending, err = applyAnswers(ctx, svc, *answersPath); err != nil {
				logger.Error("failed to apply answers", slog.Any("error", err))
				os.Exit(1)
			}
		}
		if *dumpPath != "" {
			err := svc.View(func(g *topology.Graph) error {
				return codec.WriteFile(*dumpPath, g, codec.ViewElements)
			})
			if err != nil {
				logger.Error("failed to write dump", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("graph dumped", slog.String("path", *dumpPath))
		}
		if !*serve && !cfg.Server.Watch {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				logger.Error("failed to write report", slog.Any("error", err))
				os.Exit(1)
			}
			return
		}
	}

	if err := serveHTTP(ctx, cfg, svc, eventBus, reg, topologyPath, logger); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func loadAndSimplify(ctx context.Context, svc *service.Simplifier, path string) (*service.Report, error) {
	g, _, err := loader.LoadYAML(path)
	if err != nil {
		return nil, err
	}
	svc.Load(g, path)
	return svc.Simplify(ctx)
}

// applyAnswers reads a key to answer map and resumes the open decisions
func applyAnswers(ctx context.Context, svc *service.Simplifier, path string) (attribute.DecisionBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	// JSON is valid YAML
	var answers map[string]any
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	return svc.Answer(ctx, answers)
}

func serveHTTP(ctx context.Context, cfg *config.Config, svc *service.Simplifier, eventBus *service.EventBus, reg *metrics.Registry, topologyPath string, logger *slog.Logger) error {
	sseHub := hub.New(logger)
	go sseHub.Run(ctx)

	eventChan := make(chan service.Event, 100)
	eventBus.Subscribe(eventChan)
	defer eventBus.Unsubscribe(eventChan)
	go func() {
		for {
			select {
			case event := <-eventChan:
				sseHub.Broadcast(event)
			case <-ctx.Done():
				return
			}
		}
	}()

	if cfg.Server.Watch && topologyPath != "" {
		w := watcher.New(topologyPath, func(path string) {
			if _, err := loadAndSimplify(ctx, svc, path); err != nil {
				logger.Error("reload failed", slog.String("topology", path), slog.Any("error", err))
			}
		}, logger)
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watcher stopped", slog.Any("error", err))
			}
		}()
	}

	mux := http.NewServeMux()
	handler.NewGraphHandler(svc, cfg.Server.MaxPathDepth, logger).Register(mux)
	mux.Handle("GET /api/events", sseHub)
	if cfg.Server.Metrics {
		mux.Handle("GET /metrics", reg.Handler())
	}

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.Chain(mux,
			handler.Recover(logger),
			handler.CORS,
			handler.Logger(logger),
		),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
