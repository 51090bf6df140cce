package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agro-valuation/valuation-portal/valuation-portal-backend/internal/valuations"
)

// DraftLister returns the ids of stored valuations in a given status
type DraftLister interface {
	ListIDsByStatus(ctx context.Context, status valuations.Status, limit int) ([]uuid.UUID, error)
}

// Recalculator re-runs a stored draft valuation
type Recalculator interface {
	Recalculate(ctx context.Context, id uuid.UUID) (*valuations.Valuation, error)
}

// RevaluationConfig configuration for the revaluation manager
type RevaluationConfig struct {
	CronExpression string        `json:"cron_expression"`
	BatchSize      int           `json:"batch_size"`
	MaxConcurrent  int           `json:"max_concurrent"`
	RunTimeout     time.Duration `json:"run_timeout"`
}

// DefaultRevaluationConfig returns default configuration
func DefaultRevaluationConfig() RevaluationConfig {
	return RevaluationConfig{
		CronExpression: "0 2 * * *",
		BatchSize:      100,
		MaxConcurrent:  4,
		RunTimeout:     30 * time.Minute,
	}
}

// RunStats summarizes one sweep over draft valuations
type RunStats struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Listed       int           `json:"listed"`
	Recalculated int           `json:"recalculated"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
}

// RevaluationManager periodically recalculates draft valuations so they
// track the current lookup tables
type RevaluationManager struct {
	cron    *cron.Cron
	entryID cron.EntryID
	lister  DraftLister
	recalc  Recalculator
	logger  *zap.Logger
	config  RevaluationConfig

	mu      sync.Mutex
	running bool
	lastRun *RunStats
}

// NewRevaluationManager creates a new revaluation manager
func NewRevaluationManager(
	lister DraftLister,
	recalc Recalculator,
	logger *zap.Logger,
	config RevaluationConfig,
) *RevaluationManager {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &RevaluationManager{
		cron:   cron.New(),
		lister: lister,
		recalc: recalc,
		logger: logger,
		config: config,
	}
}

// Start registers the sweep with cron and starts the scheduler
func (m *RevaluationManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("revaluation manager already running")
	}

	entryID, err := m.cron.AddFunc(m.config.CronExpression, func() {
		ctx := context.Background()
		if m.config.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.config.RunTimeout)
			defer cancel()
		}
		m.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	m.entryID = entryID
	m.cron.Start()
	m.running = true

	m.logger.Info("Started revaluation manager",
		zap.String("cron", m.config.CronExpression),
		zap.Time("next_run", m.cron.Entry(entryID).Next))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (m *RevaluationManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	m.logger.Info("Stopping revaluation manager")
	<-m.cron.Stop().Done()

	// A later Start registers the sweep again
	m.cron.Remove(m.entryID)
}

// RunOnce recalculates up to BatchSize draft valuations, oldest first.
// Valuations that left draft status in the meantime are skipped.
func (m *RevaluationManager) RunOnce(ctx context.Context) RunStats {
	stats := RunStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		m.mu.Lock()
		last := stats
		m.lastRun = &last
		m.mu.Unlock()
	}()

	ids, err := m.lister.ListIDsByStatus(ctx, valuations.StatusDraft, m.config.BatchSize)
	if err != nil {
		m.logger.Error("Failed to list draft valuations", zap.Error(err))
		return stats
	}
	stats.Listed = len(ids)
	if len(ids) == 0 {
		return stats
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.MaxConcurrent)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := m.recalc.Recalculate(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				stats.Recalculated++
			case errors.Is(err, valuations.ErrNotDraft), errors.Is(err, valuations.ErrNotFound):
				stats.Skipped++
			default:
				stats.Failed++
				m.logger.Error("Failed to recalculate valuation",
					zap.String("valuation_id", id.String()),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	m.logger.Info("Revaluation sweep completed",
		zap.Int("listed", stats.Listed),
		zap.Int("recalculated", stats.Recalculated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats
}

// LastRun returns the stats of the most recent sweep, if any
func (m *RevaluationManager) LastRun() (RunStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastRun == nil {
		return RunStats{}, false
	}
	return *m.lastRun, true
}

// NextRun returns when the next sweep is due; zero when not started
func (m *RevaluationManager) NextRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return time.Time{}
	}
	return m.cron.Entry(m.entryID).Next
}

// ValidateCronExpression validates a cron expression
func ValidateCronExpression(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(expr)
	return err
}
