// Package sweeper runs the periodic reconciliation sweep: every connected
// account gets a synthetic notification at the provider's current position,
// so windows lost to dropped pushes or fetch failures are replayed.
package sweeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/config"
	"github.com/InboxSlash/inbox-slash/internal/history"
	"github.com/InboxSlash/inbox-slash/internal/repository"
)

// Processor handles one notification, synthetic or not.
type Processor interface {
	ProcessNotification(ctx context.Context, n history.Notification) error
}

// TargetLister enumerates the accounts to sweep.
type TargetLister interface {
	SyncTargets() ([]repository.SyncTarget, error)
}

// Sweeper manages the periodic reconciliation sweep
type Sweeper struct {
	cron       *cron.Cron
	entryID    cron.EntryID
	config     *config.SweepConfig
	targets    TargetLister
	newMailbox history.MailboxFactory
	processor  Processor
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	isRunning  bool
	mu         sync.RWMutex
}

// NewSweeper creates a new sweeper
func NewSweeper(cfg *config.SweepConfig, targets TargetLister, factory history.MailboxFactory, processor Processor) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		cron:       cron.New(cron.WithSeconds()),
		config:     cfg,
		targets:    targets,
		newMailbox: factory,
		processor:  processor,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the sweep schedule
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("sweep is already running")
	}

	entryID, err := s.cron.AddFunc(s.config.Schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Reconciliation sweep started with schedule: %s", s.config.Schedule)
	return nil
}

// Stop stops the sweep schedule
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logrus.Info("Sweep stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Sweep stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the sweep schedule is active
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunOnce runs one sweep cycle immediately (for manual triggering)
func (s *Sweeper) RunOnce() {
	logrus.Info("Running reconciliation sweep once")
	s.sweep()
}

// NextRun returns the time of the next scheduled sweep
func (s *Sweeper) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Wait waits for in-flight sweep cycles to finish
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

// sweep replays every connected account from its cursor up to the provider's
// current position.
func (s *Sweeper) sweep() {
	s.wg.Add(1)
	defer s.wg.Done()

	startTime := time.Now()
	logrus.Info("Starting reconciliation sweep cycle")

	targets, err := s.targets.SyncTargets()
	if err != nil {
		logrus.Errorf("Sweep: failed to list sync targets: %v", err)
		return
	}

	swept := 0
	for _, target := range targets {
		select {
		case <-s.ctx.Done():
			logrus.Info("Sweep cancelled")
			return
		default:
		}

		if err := s.sweepTarget(target); err != nil {
			logrus.WithField("email", target.User.Email).Errorf("Sweep failed: %v", err)
			continue
		}
		swept++
	}

	logrus.Infof("Sweep cycle completed: %d/%d accounts in %v", swept, len(targets), time.Since(startTime))
}

// sweepTarget asks the provider for the mailbox's current position and feeds
// it through the same path a webhook notification takes.
func (s *Sweeper) sweepTarget(target repository.SyncTarget) error {
	mbox, err := s.newMailbox(s.ctx, &target.Account)
	if err != nil {
		return fmt.Errorf("failed to create mailbox client: %w", err)
	}

	current, err := mbox.CurrentHistoryID(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to get current history id: %w", err)
	}

	if current <= target.User.LastSyncedHistoryID {
		logrus.WithField("email", target.User.Email).Debug("Sweep: mailbox already up to date")
		return nil
	}

	return s.processor.ProcessNotification(s.ctx, history.Notification{
		EmailAddress: target.User.Email,
		HistoryID:    current,
	})
}
