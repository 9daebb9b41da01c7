// Package pipeline implements the indexing run orchestration: scan every
// configured source, detect what changed, and dispatch each file to its
// format handler across three phases, reporting progress and bounded
// notifications as it goes.
package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/flyingrobots/blacklight/internal/backup"
	"github.com/flyingrobots/blacklight/internal/change"
	"github.com/flyingrobots/blacklight/internal/ingest/claude"
	"github.com/flyingrobots/blacklight/internal/ingest/codex"
	"github.com/flyingrobots/blacklight/internal/ingest/gemini"
	"github.com/flyingrobots/blacklight/internal/ingest/structured"
	"github.com/flyingrobots/blacklight/internal/job"
	"github.com/flyingrobots/blacklight/internal/metrics"
	"github.com/flyingrobots/blacklight/internal/repository"
	"github.com/flyingrobots/blacklight/internal/scanner"
	"github.com/flyingrobots/blacklight/pkg/log"
)

// NotificationLevel distinguishes informational updates from warnings
// worth surfacing to an interactive observer.
type NotificationLevel int

const (
	LevelInfo NotificationLevel = iota
	LevelWarn
)

// Notification is one event emitted during a run.
type Notification struct {
	Level       NotificationLevel
	Message     string
	TimestampMs int64
}

// notifyBufferSize bounds the broadcast channel; a full channel drops
// the newest notification rather than blocking the pipeline.
const notifyBufferSize = 256

// Report summarizes one completed (or aborted) run.
type Report struct {
	FilesScanned      int
	FilesProcessed    int
	FilesSkipped      int
	FilesDeleted      int
	ParseErrors       int
	MessagesProcessed int
	BlobsWritten      int
	BlobsDeduped      int
	Duration          time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf(
		"scanned=%d processed=%d skipped=%d deleted=%d parse_errors=%d messages=%d blobs_written=%d blobs_deduped=%d duration=%s",
		r.FilesScanned, r.FilesProcessed, r.FilesSkipped, r.FilesDeleted,
		r.ParseErrors, r.MessagesProcessed, r.BlobsWritten, r.BlobsDeduped, r.Duration,
	)
}

// Controller drives one indexing run at a time, reporting progress and
// cancellation through the shared job.Controller primitive and emitting
// notifications on a bounded, lossy broadcast channel.
type Controller struct {
	conn     *repository.DBConnection
	job      *job.Controller
	notifyCh chan Notification
	backup   backup.Backuper
}

// New returns a Controller bound to conn, backed by its own job.Controller
// instance. Backups are disabled until SetBackuper is called.
func New(conn *repository.DBConnection) *Controller {
	return &Controller{
		conn:     conn,
		job:      job.New(),
		notifyCh: make(chan Notification, notifyBufferSize),
		backup:   noopBackuper{},
	}
}

// SetBackuper installs b as the collaborator that preserves source files
// for each session processed from here on.
func (c *Controller) SetBackuper(b backup.Backuper) {
	if b == nil {
		b = noopBackuper{}
	}
	c.backup = b
}

type noopBackuper struct{}

func (noopBackuper) Backup(string, string) error { return nil }

// Job exposes the underlying state machine so callers can Pause/Resume/
// Cancel a run and read its Progress.
func (c *Controller) Job() *job.Controller { return c.job }

// Notifications returns the channel notifications are broadcast on.
// Slow or absent readers never back-pressure the run: a full channel
// drops the new notification instead of blocking.
func (c *Controller) Notifications() <-chan Notification { return c.notifyCh }

func (c *Controller) notify(level NotificationLevel, format string, args ...any) {
	n := Notification{Level: level, Message: fmt.Sprintf(format, args...), TimestampMs: time.Now().UnixMilli()}
	select {
	case c.notifyCh <- n:
	default:
	}
}

// pauseSpin is how long the controller sleeps between checks of the
// pause flag while a run is suspended.
const pauseSpin = 100 * time.Millisecond

func (c *Controller) waitWhilePaused() {
	for c.job.ShouldPause() {
		time.Sleep(pauseSpin)
	}
}

// RunIndex executes one full indexing pass over roots: scan, change
// detection, Phase 1 metadata, Phase 2 transcripts, Phase 3 structured
// side data. full forces every file to be treated as new regardless of
// indexed_files state.
func (c *Controller) RunIndex(roots []string, full bool) (Report, error) {
	if err := c.job.ResetForRun(); err != nil {
		return Report{}, err
	}
	start := time.Now()

	var report Report
	entries, err := scanner.Scan(roots)
	if err != nil {
		c.job.Fail(err)
		return report, fmt.Errorf("pipeline: scan: %w", err)
	}
	report.FilesScanned = len(entries)

	plan, err := change.DetectChanges(c.conn.DB, entries, full)
	if err != nil {
		c.job.Fail(err)
		return report, fmt.Errorf("pipeline: detect changes: %w", err)
	}
	report.FilesSkipped = plan.UnchangedCount
	report.FilesDeleted = len(plan.DeletedPaths)

	c.job.UpdateProgress(func(p job.Progress) job.Progress {
		p.FilesTotal = len(plan.ToProcess)
		return p
	})

	phases := [][]scanner.FileKind{
		{scanner.KindSessionIndex, scanner.KindDesktopSessionIndex},
		{scanner.KindClaudeSession, scanner.KindGeminiSession, scanner.KindCodexSession},
		{scanner.KindTaskFile, scanner.KindFacetFile, scanner.KindStatsCache, scanner.KindPlanFile, scanner.KindHistoryFile, scanner.KindTodoJson, scanner.KindToolResultTxt},
	}
	phaseNames := []string{"metadata", "transcripts", "structured"}

	byKind := make(map[scanner.FileKind][]change.Classification)
	for _, cl := range plan.ToProcess {
		byKind[cl.Entry.Kind] = append(byKind[cl.Entry.Kind], cl)
	}

	for phaseIdx, kinds := range phases {
		if c.job.ShouldCancel() {
			break
		}
		c.job.UpdateProgress(func(p job.Progress) job.Progress {
			p.Phase = phaseNames[phaseIdx]
			return p
		})

		for _, kind := range kinds {
			for _, cl := range byKind[kind] {
				if c.job.ShouldCancel() {
					break
				}
				c.waitWhilePaused()
				if c.job.ShouldCancel() {
					break
				}

				if err := c.processOne(cl, &report); err != nil {
					report.ParseErrors++
					log.Warnf("pipeline: %s: %v", cl.Entry.Path, err)
					c.notify(LevelWarn, "failed to process %s: %v", cl.Entry.Path, err)
					continue
				}
				report.FilesProcessed++
				c.job.UpdateProgress(func(p job.Progress) job.Progress {
					p.FilesDone++
					p.MessagesProcessed = report.MessagesProcessed
					p.BlobsInserted = report.BlobsWritten
					return p
				})
			}
		}
	}

	report.Duration = time.Since(start)
	c.job.Complete(report)
	metrics.ObserveRun(metrics.RunReport{
		FilesScanned:      report.FilesScanned,
		FilesProcessed:    report.FilesProcessed,
		FilesSkipped:      report.FilesSkipped,
		ParseErrors:       report.ParseErrors,
		MessagesProcessed: report.MessagesProcessed,
		BlobsWritten:      report.BlobsWritten,
		BlobsDeduped:      report.BlobsDeduped,
		DurationSeconds:   report.Duration.Seconds(),
	})
	metrics.IndexerState.Set(float64(c.job.State()))
	if c.job.State() == job.Cancelled {
		c.notify(LevelWarn, "run cancelled: %s", report.String())
	} else {
		c.notify(LevelInfo, "run completed: %s", report.String())
	}
	return report, nil
}

func (c *Controller) processOne(cl change.Classification, report *Report) error {
	path := cl.Entry.Path
	now := time.Now().UTC()

	switch cl.Entry.Kind {
	case scanner.KindClaudeSession:
		offset, stats, err := claude.ProcessFile(c.conn, path, cl.LastByteOffset)
		if err != nil {
			return err
		}
		report.MessagesProcessed += stats.MessagesProcessed
		report.BlobsWritten += stats.BlobsWritten
		report.BlobsDeduped += stats.BlobsDeduped
		c.backupSession(claudeSessionID(path), path)
		return change.MarkIndexed(c.conn.DB, path, cl.Entry.MtimeMs, cl.Entry.Size, offset, now)

	case scanner.KindGeminiSession:
		result, err := gemini.ProcessFile(c.conn, path)
		if err != nil {
			return err
		}
		report.MessagesProcessed += result.MessageCount
		c.backupSession(result.SessionID, path)
		return change.MarkIndexed(c.conn.DB, path, cl.Entry.MtimeMs, cl.Entry.Size, cl.Entry.Size, now)

	case scanner.KindCodexSession:
		result, err := codex.ProcessFile(c.conn, path)
		if err != nil {
			return err
		}
		report.MessagesProcessed += len(result.Batch)
		c.backupSession(result.SessionID, path)
		return change.MarkIndexed(c.conn.DB, path, cl.Entry.MtimeMs, cl.Entry.Size, cl.Entry.Size, now)

	case scanner.KindSessionIndex, scanner.KindDesktopSessionIndex,
		scanner.KindTaskFile, scanner.KindFacetFile, scanner.KindStatsCache,
		scanner.KindPlanFile, scanner.KindHistoryFile,
		scanner.KindTodoJson, scanner.KindToolResultTxt:
		if err := structured.ProcessFile(c.conn, path, cl.Entry.Kind); err != nil {
			return err
		}
		return change.MarkIndexed(c.conn.DB, path, cl.Entry.MtimeMs, cl.Entry.Size, cl.Entry.Size, now)

	default:
		return fmt.Errorf("pipeline: no handler registered for kind %s", cl.Entry.Kind)
	}
}

// claudeSessionID derives a session's ID from its transcript path the
// same way internal/ingest/claude does: the file's base name without
// its extension.
func claudeSessionID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// backupSession preserves the source file once its session has been
// ensured in the database; a backup failure is logged and surfaced as a
// notification but never fails the run, since the file is already fully
// indexed by this point.
func (c *Controller) backupSession(sessionID, path string) {
	if err := c.backup.Backup(sessionID, path); err != nil {
		log.Warnf("pipeline: backup %s: %v", path, err)
		c.notify(LevelWarn, "backup failed for %s: %v", path, err)
	}
}
