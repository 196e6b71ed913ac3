// Package app wires the application together.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/coldemail"
	"github.com/InboxSlash/inbox-slash/internal/config"
	"github.com/InboxSlash/inbox-slash/internal/database"
	"github.com/InboxSlash/inbox-slash/internal/gmail"
	"github.com/InboxSlash/inbox-slash/internal/handler"
	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/metrics"
	"github.com/InboxSlash/inbox-slash/internal/repository"
	"github.com/InboxSlash/inbox-slash/internal/router"
	"github.com/InboxSlash/inbox-slash/internal/rules"
	"github.com/InboxSlash/inbox-slash/internal/sweeper"
	"github.com/InboxSlash/inbox-slash/internal/unsubscribe"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting InboxSlash webhook service")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dbConn, err := database.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()
	repo := repository.New(dbConn)
	mailboxFactory := gmail.NewFactory(cfg.Gmail, cfg.Pipeline)

	engine := rules.NewEngine(rules.NewInstructionSelector())
	blocker := coldemail.NewBlocker(coldemail.DomainHistoryClassifier{}, repo)
	unsub := unsubscribe.NewService(repo)

	pipeline := history.NewPipeline(repo, unsub, engine, blocker, m)
	orchestrator := history.NewOrchestrator(repo, mailboxFactory, pipeline, m, cfg.Pipeline.HistoryLookback)

	sweep := sweeper.NewSweeper(&cfg.Sweep, repo, mailboxFactory, orchestrator)

	h := handler.NewHandlers(dbConn, repo, orchestrator, sweep, cfg.Pipeline.Timeout)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.SetupRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Sweep.Enabled {
		if err := sweep.Start(); err != nil {
			return fmt.Errorf("failed to start reconciliation sweep: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sweep.Stop(); err != nil {
		logrus.Errorf("Failed to stop sweep: %v", err)
	}
	sweep.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
