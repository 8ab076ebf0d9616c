// ABOUTME: Gateway assembly: wires store, services, worker pool and HTTP server
// ABOUTME: Run blocks until context cancellation, then shuts down gracefully

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solacehq/solace/internal/analysis"
	"github.com/solacehq/solace/internal/api"
	"github.com/solacehq/solace/internal/chat"
	"github.com/solacehq/solace/internal/config"
	"github.com/solacehq/solace/internal/diary"
	"github.com/solacehq/solace/internal/llm"
	"github.com/solacehq/solace/internal/memory"
	"github.com/solacehq/solace/internal/store"
	"github.com/solacehq/solace/internal/tasks"
)

// Gateway owns every long-lived component of the service.
type Gateway struct {
	config     *config.Config
	logger     *slog.Logger
	store      *store.SQLiteStore
	queue      *tasks.Queue
	pool       *tasks.Pool
	chat       *chat.Service
	diary      *diary.Service
	httpServer *http.Server
}

// New builds a fully wired Gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	client := llm.New(cfg.LLM.BaseURL, cfg.LLM.Model)
	analyzer := analysis.NewLLMAnalyzer(client)

	queue := tasks.NewQueue(st, logger)
	pool := tasks.NewPool(cfg.Workers.PoolSize, queue, st, analyzer, cfg.Workers.PollInterval, logger)

	window := memory.NewWindow(cfg.Chat.MemoryWindow)
	chatService := chat.NewService(st, window, client, analyzer, queue, logger)
	if cfg.Chat.SessionTTL > 0 {
		chatService.SetSessionTTL(cfg.Chat.SessionTTL)
	}
	diaryService := diary.NewService(st, queue, logger)

	handler := api.NewHandler(api.Deps{
		Chat:   chatService,
		Diary:  diaryService,
		Tasks:  queue,
		Logger: logger,
	})

	gw := &Gateway{
		config: cfg,
		logger: logger.With("component", "gateway"),
		store:  st,
		queue:  queue,
		pool:   pool,
		chat:   chatService,
		diary:  diaryService,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	return gw, nil
}

// Run starts the HTTP server and the analysis worker pool and blocks
// until the context is canceled or a server fails. Returns nil on
// graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		g.logger.Info("analysis workers started", "pool_size", g.config.Workers.PoolSize)
		return g.pool.Run(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return group.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases resources. Safe to call
// after Run returns.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs []error

	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}

	if len(errs) > 0 {
		return errs[0]
	}
	g.logger.Info("shutdown complete")
	return nil
}
