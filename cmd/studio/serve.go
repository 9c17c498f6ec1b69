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

	"github.com/deliverable-studio/backend/internal/api"
	"github.com/deliverable-studio/backend/internal/config"
	"github.com/deliverable-studio/backend/internal/dashboard"
	"github.com/deliverable-studio/backend/internal/export"
	"github.com/deliverable-studio/backend/internal/generate"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("seed") {
				a.cfg.Advanced.SeedDashboard = seed
			}
			return a.serve(cmd)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "seed the dashboard with example projects")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	cfg, logger := a.cfg, a.logger

	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	dash, err := dashboard.NewStore(logger)
	if err != nil {
		return err
	}
	defer dash.Close()

	if cfg.Advanced.SeedDashboard {
		n, err := dash.Seed(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed dashboard: %w", err)
		}
		logger.Info("dashboard seeded", zap.Int("projects", n))
	}

	go runCleanup(ctx, cfg, p, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		Logger:         logger,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		Verbose:        a.verbose,
	})
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Workspaces:  p.workspaces,
		Intake:      p.intake,
		Storage:     p.storage,
		Dashboard:   dash,
		Generator:   generate.TemplateGenerator{},
		Exports:     export.DefaultRegistry(),
		Rules:       p.rules,
		MaxFileSize: cfg.MaxFileSizeBytes(),
		Logger:      logger,
		Version:     Version,
	}))

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cmd, a.configPath, cfg, p.storage.StrategyName())

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runCleanup drops idle workspaces and finished jobs until ctx is done.
func runCleanup(ctx context.Context, cfg *config.AppConfig, p *pipeline, logger *zap.Logger) {
	interval := time.Duration(cfg.Session.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	workspaceTTL := time.Duration(cfg.Session.WorkspaceTimeoutMinutes) * time.Minute
	jobTTL := time.Duration(cfg.Session.JobRetentionMinutes) * time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workspaces := p.workspaces.CleanupOld(workspaceTTL)
			jobs := p.intake.CleanupOldJobs(jobTTL)
			if workspaces > 0 || jobs > 0 {
				logger.Info("cleanup",
					zap.Int("workspaces", workspaces),
					zap.Int("jobs", jobs),
					zap.Int("localBlobs", p.blobs.Len()))
			}
		}
	}
}

func printBanner(cmd *cobra.Command, configPath string, cfg *config.AppConfig, strategy string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(out, "║           Deliverable Studio Server                       ║\n")
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Version:    %-45s║\n", Version)
	fmt.Fprintf(out, "║  Build Time: %-45s║\n", BuildTime)
	fmt.Fprintf(out, "║  Storage:    %-45s║\n", strategy)
	fmt.Fprintf(out, "╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Fprintf(out, "║  Config:    %-46s║\n", configPath)
	fmt.Fprintf(out, "║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Fprintf(out, "║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Fprintf(out, "╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Fprintf(out, "\n")
}
