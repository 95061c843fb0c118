// Package httpd implements the command that runs the crawler service:
// scheduled crawls for every configured site plus the management HTTP API.
package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/leobrain/crawler/cmd/common"
	"github.com/leobrain/crawler/internal/api"
	"github.com/leobrain/crawler/internal/config"
	"github.com/leobrain/crawler/internal/logger"
	"github.com/leobrain/crawler/internal/scheduler"
	"github.com/leobrain/crawler/internal/sources"
)

const (
	// signalChannelBufferSize buffers one interrupt so it is not lost
	// between Notify and the select.
	signalChannelBufferSize = 1

	// errorChannelBufferSize lets the server goroutine exit without a
	// waiting reader.
	errorChannelBufferSize = 1

	// startupTimeout bounds the Postgres and MinIO checks at boot.
	startupTimeout = 30 * time.Second

	// defaultShutdownTimeout is how long graceful shutdown may take.
	defaultShutdownTimeout = 30 * time.Second
)

// Command returns the httpd command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Start the crawler service and management API",
		Long: `Start the crawler service: a scheduler that crawls every configured
site on its cron expression, and the management HTTP API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start()
		},
	}
}

// Start boots the service and blocks until an interrupt arrives or the
// HTTP server fails.
func Start() error {
	deps, err := common.NewCommandDeps()
	if err != nil {
		return err
	}
	log := deps.Logger

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStart()

	stack, err := common.NewCrawlStack(startCtx, deps)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := stack.Close(); closeErr != nil {
			log.Error("Failed to close crawl stack", "error", closeErr)
		}
	}()

	sched := scheduler.New(stack.Crawl, stack.Sites, log, stack.Metrics)
	if err := registerSiteJobs(sched, stack.Sites, log); err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	server := buildServer(deps.Config, log, stack, sched)

	errChan := startHTTPServer(log, server)
	runErr := runServerUntilInterrupt(log, errChan)
	shutdownErr := shutdownServer(log, server, sched)

	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// registerSiteJobs adds one cron job per site that declares a schedule.
// Sites without one are still crawlable through the manual trigger.
func registerSiteJobs(sched *scheduler.Scheduler, registry *sources.Registry, log logger.Interface) error {
	for _, site := range registry.All() {
		if site.Cron == "" {
			log.Info("Site has no cron schedule, manual crawls only", "site", site.Name)
			continue
		}
		spec := scheduler.JobSpec{
			ID:      scheduler.CrawlJobID(site.Name),
			Name:    "Scheduled crawl of " + site.Name,
			Site:    site.Name,
			Trigger: scheduler.TriggerCron,
			Cron:    site.Cron,
		}
		if err := sched.AddJob(spec); err != nil {
			return fmt.Errorf("failed to schedule site %q: %w", site.Name, err)
		}
		log.Info("Site crawl scheduled", "site", site.Name, "cron", site.Cron)
	}
	return nil
}

// buildServer assembles the API handlers and the HTTP server around them.
func buildServer(cfg *config.Config, log logger.Interface, stack *common.CrawlStack, sched *scheduler.Scheduler) *http.Server {
	health := api.NewHealthHandler(stack.DB, stack.Storage, log)
	crawlers := api.NewCrawlersHandler(sched, stack.Sites, log)
	jobs := api.NewJobsHandler(sched)
	contents := api.NewContentsHandler(stack.Repo, stack.Storage, stack.Pipeline, log)
	metricsHandler := promhttp.HandlerFor(stack.Registry, promhttp.HandlerOpts{})

	router := api.SetupRouter(log, health, crawlers, jobs, contents, metricsHandler)

	return api.NewServer(api.ServerConfig{
		Address:      cfg.Server.Address,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, router)
}

// startHTTPServer runs the server in a goroutine and reports startup
// failures on the returned channel. A graceful close is not an error.
func startHTTPServer(log logger.Interface, server *http.Server) <-chan error {
	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		log.Info("HTTP server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	return errChan
}

// runServerUntilInterrupt blocks until the server fails or SIGINT/SIGTERM
// arrives.
func runServerUntilInterrupt(log logger.Interface, errChan <-chan error) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("Shutdown signal received", "signal", sig.String())
		return nil
	}
}

// shutdownServer drains the HTTP server first so no request can reach a
// stopped scheduler, then stops the scheduler and waits for running crawls.
func shutdownServer(log logger.Interface, server *http.Server, sched *scheduler.Scheduler) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	var errs []error

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}

	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Error("Scheduler shutdown failed", "error", err)
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
	}

	if joined := errors.Join(errs...); joined != nil {
		return joined
	}
	log.Info("Shutdown complete")
	return nil
}
