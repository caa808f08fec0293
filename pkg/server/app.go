package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "MacroPulse/internal/domain/repository"
	"MacroPulse/internal/usecase"
	"MacroPulse/pkg/config"
	xhttp "MacroPulse/pkg/http"
	applogger "MacroPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	httpServer *xhttp.Server
	overlay    *usecase.OverlayUseCase
	score      *usecase.ScoreUseCase
	l          *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	httpServer *xhttp.Server,
	overlay *usecase.OverlayUseCase,
	score *usecase.ScoreUseCase,
	l *applogger.Logger,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, httpServer: httpServer, overlay: overlay, score: score, l: l}
}

// Overlay exposes the overlay use case to one-shot commands.
func (a *App) Overlay() *usecase.OverlayUseCase { return a.overlay }

// Score exposes the score use case to one-shot commands.
func (a *App) Score() *usecase.ScoreUseCase { return a.score }

// Run starts the HTTP server and the background refresher and blocks until
// interrupted.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return a.RunContext(ctx)
}

// RunContext is Run bounded by ctx instead of process signals.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.refreshLoop(ctx)
	}()

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	<-done
	return a.shutdown()
}

// refreshLoop recomputes the default ticker overlay on every stream
// interval, which keeps the cache warm and feeds the publisher.
func (a *App) refreshLoop(ctx context.Context) {
	interval := a.cfg.Analytics.StreamInterval
	if interval <= 0 {
		return
	}
	ticker := a.cfg.Analytics.DefaultTicker
	period := domrepo.NormalizePeriod(a.cfg.Analytics.DefaultPeriod)
	l := a.l.With(applogger.String("ticker", ticker), applogger.String("period", string(period)))

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := a.overlay.Refresh(ctx, ticker, period); err != nil && ctx.Err() == nil {
			l.Warn("overlay refresh failed", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// shutdown gracefully stops the HTTP server.
func (a *App) shutdown() error {
	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}
	a.l.Info("shutdown complete")
	return nil
}
