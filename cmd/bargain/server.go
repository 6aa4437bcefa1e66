package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"bargain/internal/ident"
	"bargain/internal/negotiation"
	"bargain/internal/randutil"
	"bargain/internal/server"
	"bargain/internal/store"
)

// ServerCmd contains core server configuration
type ServerCmd struct {
	Config string `kong:"default='bargain.hcl',help='Path to HCL configuration file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	Seed   *int64 `kong:"help='Deterministic RNG seed for pairing (optional)'"`
}

func (c *ServerCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if c.Debug {
		logger.SetLevel(log.DebugLevel)
	} else if level, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	var seed int64
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("Using deterministic seed", "seed", seed)
	} else {
		seed = time.Now().UnixNano()
	}
	rng := randutil.New(seed)

	repo, err := store.NewSQLite(cfg.Server.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()

	rules := cfg.Rules()
	ids := ident.NewGenerator(rng)
	ws := server.NewServer(cfg.GameAddr(), logger)

	queue := negotiation.NewQueue(rules, rng, ids, logger)
	registry := negotiation.NewRegistry()
	engine := negotiation.NewEngine(queue, registry, repo, ws, rules, ids, quartz.NewReal(), logger)
	ws.SetEngine(engine)

	api := server.NewAPI(engine, repo, logger)
	apiSrv := &http.Server{Addr: cfg.APIAddr(), Handler: api.Handler()}

	logger.Info("Starting bargaining server",
		"game_addr", cfg.GameAddr(),
		"api_addr", cfg.APIAddr(),
		"database", cfg.Server.Database,
		"pie_size", rules.PieSize,
		"max_rounds", rules.MaxRounds,
		"groups", len(rules.BATNAs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := ws.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP API", "addr", cfg.APIAddr())
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return apiSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
