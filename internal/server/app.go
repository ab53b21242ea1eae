// Package server initializes and runs the stashkeeper server: it opens the
// storage backend, starts the expiry sweeper and the HTTP boundary, and
// handles graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akulikov/stashkeeper/internal/logging"
	"github.com/akulikov/stashkeeper/internal/server/config"
	"github.com/akulikov/stashkeeper/internal/server/entries"
	"github.com/akulikov/stashkeeper/internal/server/httpapi"
	"github.com/akulikov/stashkeeper/internal/server/repositories/repomanager"
	"github.com/akulikov/stashkeeper/internal/server/sweeper"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	manager      repomanager.RepositoryManager
	entryService *entries.Service
	sweeper      *sweeper.Sweeper
	httpServer   *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	m, err := repomanager.NewPostgresRepositoryManager(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	es := entries.NewService(m.Entries(), c.EntryTTL, c.ListPageSize)
	sw := sweeper.New(m.Entries(), c.EntryTTL, c.SweepInterval, logger)
	hs := httpapi.NewServer(c.EndpointAddr, logger, es)

	return &App{
		config:       c,
		logger:       logger,
		manager:      m,
		entryService: es,
		sweeper:      sw,
		httpServer:   hs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
}
