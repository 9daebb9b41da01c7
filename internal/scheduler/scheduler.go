// Package scheduler runs the background indexing (and, as a stubbed
// collaborator, enrichment) loop on the interval recorded in the
// schedule_config table, re-reading that row fresh every tick so
// enable/disable and enrichment toggles take effect immediately while
// interval changes take effect on the next tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/time/rate"

	"github.com/flyingrobots/blacklight/internal/job"
	"github.com/flyingrobots/blacklight/internal/pipeline"
	"github.com/flyingrobots/blacklight/internal/repository"
	"github.com/flyingrobots/blacklight/pkg/log"
)

// tickInterval is how often the underlying gocron job fires to check
// whether an indexing run is due; this mirrors a one-second cancel-check
// granularity rather than sleeping for the full configured interval in
// one call.
const tickInterval = 1 * time.Second

// Config is the schedule_config singleton row.
type Config struct {
	Enabled               bool
	IntervalMinutes       int
	RunEnrichment         bool
	EnrichmentConcurrency int
}

// Queryer is satisfied by *sqlx.DB; narrowed here to the one method
// LoadConfig needs.
type Queryer interface {
	Get(dest any, query string, args ...any) error
}

// LoadConfig reads the schedule_config row (id=1), which migrations
// guarantee always exists.
func LoadConfig(q Queryer) (Config, error) {
	var row struct {
		Enabled               int `db:"enabled"`
		IntervalMinutes       int `db:"interval_minutes"`
		RunEnrichment         int `db:"run_enrichment"`
		EnrichmentConcurrency int `db:"enrichment_concurrency"`
	}
	err := q.Get(&row, `SELECT enabled, interval_minutes, run_enrichment, enrichment_concurrency
		FROM schedule_config WHERE id = 1`)
	if err != nil {
		return Config{}, fmt.Errorf("scheduler: load config: %w", err)
	}
	return Config{
		Enabled:               row.Enabled != 0,
		IntervalMinutes:       row.IntervalMinutes,
		RunEnrichment:         row.RunEnrichment != 0,
		EnrichmentConcurrency: row.EnrichmentConcurrency,
	}, nil
}

// EnrichFunc is the stubbed enrichment collaborator, invoked with the
// configured concurrency limit when run_enrichment is set. Enrichment
// itself lives outside this indexing engine; this is the seam it plugs
// into.
type EnrichFunc func(ctx context.Context, limiter *rate.Limiter) error

// Scheduler owns the gocron job driving scheduled indexing runs.
type Scheduler struct {
	conn   *repository.DBConnection
	pipe   *pipeline.Controller
	roots  []string
	enrich EnrichFunc
	gocron gocron.Scheduler

	// tickMu serializes tick invocations so an index/enrichment run that
	// outlasts one second never overlaps with the next tick, and guards
	// lastRun against concurrent access.
	tickMu  sync.Mutex
	lastRun time.Time
}

// New builds a Scheduler bound to pipe. enrich may be nil, in which case
// run_enrichment is ignored.
func New(conn *repository.DBConnection, pipe *pipeline.Controller, roots []string, enrich EnrichFunc) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create gocron scheduler: %w", err)
	}
	return &Scheduler{
		conn:   conn,
		pipe:   pipe,
		roots:  roots,
		enrich: enrich,
		gocron: s,
	}, nil
}

// Start registers the tick job and starts the underlying gocron
// scheduler. ctx governs the job's own lifetime; callers should also
// call Shutdown to stop gocron itself.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.gocron.NewJob(
		gocron.DurationJob(tickInterval),
		gocron.NewTask(func() { s.tick(ctx) }),
	)
	if err != nil {
		return fmt.Errorf("scheduler: register tick job: %w", err)
	}
	s.gocron.Start()
	return nil
}

// Shutdown stops the gocron scheduler, waiting for any in-flight tick to
// finish.
func (s *Scheduler) Shutdown() error {
	return s.gocron.Shutdown()
}

// tick is invoked roughly every tickInterval. It reads schedule_config
// fresh, does nothing if disabled or if the configured interval hasn't
// elapsed since the last run, then triggers an indexing run (and,
// optionally, enrichment) if nothing is already running.
func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !s.tickMu.TryLock() {
		// A previous tick's run is still in flight; this tick is a no-op
		// rather than queuing up behind it.
		return
	}
	defer s.tickMu.Unlock()

	cfg, err := LoadConfig(s.conn.DB)
	if err != nil {
		log.Warnf("scheduler: %v", err)
		return
	}
	if !cfg.Enabled {
		return
	}

	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if !s.lastRun.IsZero() && time.Since(s.lastRun) < interval {
		return
	}

	s.runIndex(cfg)
	if cfg.RunEnrichment && s.enrich != nil {
		s.runEnrichment(ctx, cfg)
	}
	s.lastRun = time.Now()
}

func (s *Scheduler) runIndex(cfg Config) {
	if s.pipe.Job().State() == job.Running || s.pipe.Job().State() == job.Paused {
		log.Info("scheduler: indexing already running, skipping")
		return
	}

	log.Info("scheduler: scheduled indexing started")
	report, err := s.pipe.RunIndex(s.roots, false)
	if err != nil {
		log.Warnf("scheduler: scheduled indexing failed: %v", err)
		return
	}
	log.Infof("scheduler: scheduled indexing complete: %s", report.String())
}

func (s *Scheduler) runEnrichment(ctx context.Context, cfg Config) {
	concurrency := cfg.EnrichmentConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Limit(concurrency), concurrency)

	log.Info("scheduler: scheduled enrichment started")
	if err := s.enrich(ctx, limiter); err != nil {
		log.Warnf("scheduler: scheduled enrichment failed: %v", err)
		return
	}
	log.Info("scheduler: scheduled enrichment complete")
}
