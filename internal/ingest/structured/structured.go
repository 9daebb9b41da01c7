// Package structured implements the side-data handlers for Phase 3 of the
// pipeline: session index/task/facet/stats-cache/plan/history files that
// supplement the primary transcript formats rather than carrying message
// content of their own.
package structured

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flyingrobots/blacklight/internal/blob"
	"github.com/flyingrobots/blacklight/internal/fts"
	"github.com/flyingrobots/blacklight/internal/ingest/claude"
	"github.com/flyingrobots/blacklight/internal/models"
)

// Execer is satisfied by *sqlx.DB and *sqlx.Tx.
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Get(dest interface{}, query string, args ...interface{}) error
}

// ProcessSessionIndex upserts every entry of a `sessions-index.json`
// batch listing, strengthening existing Session rows rather than
// overwriting them.
func ProcessSessionIndex(ex claude.Execer, path string, data []byte, now string) (int, error) {
	var idx models.SessionIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return 0, fmt.Errorf("structured: parse session index %s: %w", path, err)
	}

	count := 0
	for _, entry := range idx.Entries {
		if entry.SessionID == "" {
			continue
		}
		projectPath := derefStr(entry.ProjectPath)
		createdAt := derefStr(entry.Created)
		if createdAt == "" {
			createdAt = now
		}
		if err := claude.EnsureSession(ex, entry.SessionID, entry.FullPath, "claude", projectPath, slugOf(projectPath), createdAt); err != nil {
			return count, err
		}
		fields := claude.SessionFields{
			GitBranch:    entry.GitBranch,
			FirstPrompt:  entry.FirstPrompt,
			Summary:      entry.Summary,
			MessageCount: entry.MessageCount,
			ModifiedAt:   coalesce(derefStr(entry.Modified), now),
		}
		if err := claude.StrengthenSession(ex, entry.SessionID, fields); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ProcessDesktopSessionIndex upserts the single-session schema used by
// `claude-code-sessions/**/local_*.json` files, sharing the same
// strengthen-upsert helper as the primary Session Index handler.
func ProcessDesktopSessionIndex(ex claude.Execer, path string, data []byte, now string) error {
	var entry models.DesktopSessionIndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return fmt.Errorf("structured: parse desktop session index %s: %w", path, err)
	}
	if entry.SessionID == "" {
		return nil
	}

	projectPath := derefStr(entry.ProjectPath)
	createdAt := derefStr(entry.Created)
	if createdAt == "" {
		createdAt = now
	}
	if err := claude.EnsureSession(ex, entry.SessionID, path, "claude-desktop", projectPath, slugOf(projectPath), createdAt); err != nil {
		return err
	}
	return claude.StrengthenSession(ex, entry.SessionID, claude.SessionFields{
		GitBranch:  entry.GitBranch,
		ModifiedAt: coalesce(derefStr(entry.Modified), now),
	})
}

// ProcessTaskFile parses one `tasks/<session_id>/<task>.json` file. The
// session id is derived from the parent directory name, matching
// original_source's convention of deriving it from the path rather than
// from a field inside the file.
func ProcessTaskFile(ex Execer, path string, data []byte) error {
	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return fmt.Errorf("structured: parse task %s: %w", path, err)
	}

	sessionID := filepath.Base(filepath.Dir(path))
	if sessionID == "" || sessionID == "." {
		sessionID = "unknown"
	}

	_, err := ex.Exec(
		`INSERT INTO tasks (session_id, task_id, description, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, task_id) DO UPDATE SET description = excluded.description, status = excluded.status`,
		sessionID, task.TaskID, task.Description, task.Status,
	)
	if err != nil {
		return fmt.Errorf("structured: upsert task %s/%s: %w", sessionID, task.TaskID, err)
	}

	for _, dep := range task.BlockedBy {
		if _, err := ex.Exec(
			`INSERT OR IGNORE INTO task_dependencies (session_id, task_id, depends_on) VALUES (?, ?, ?)`,
			sessionID, task.TaskID, dep,
		); err != nil {
			return fmt.Errorf("structured: insert task dependency %s/%s -> %s: %w", sessionID, task.TaskID, dep, err)
		}
	}
	return nil
}

// ProcessFacetFile parses a `usage-data/facets/**/*.json` file into
// session_outcomes, outcome_categories, and outcome_friction rows. The
// session id comes from the JSON field when present, otherwise the
// file's stem.
func ProcessFacetFile(ex Execer, path string, data []byte) error {
	var facet models.Facet
	if err := json.Unmarshal(data, &facet); err != nil {
		return fmt.Errorf("structured: parse facet %s: %w", path, err)
	}

	sessionID := derefStr(facet.SessionID)
	if sessionID == "" {
		base := filepath.Base(path)
		sessionID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if sessionID == "" {
		sessionID = "unknown"
	}

	goalCategories := strings.Join(facet.GoalCategories, ",")
	if _, err := ex.Exec(
		`INSERT INTO session_outcomes (session_id, goal_categories) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET goal_categories = excluded.goal_categories`,
		sessionID, goalCategories,
	); err != nil {
		return fmt.Errorf("structured: upsert session outcome %s: %w", sessionID, err)
	}

	for _, category := range facet.OutcomeCategories {
		if _, err := ex.Exec(
			`INSERT OR IGNORE INTO outcome_categories (session_id, category) VALUES (?, ?)`,
			sessionID, category,
		); err != nil {
			return fmt.Errorf("structured: insert outcome category %s/%s: %w", sessionID, category, err)
		}
	}

	for friction, count := range facet.FrictionCounts {
		if _, err := ex.Exec(
			`INSERT INTO outcome_friction (session_id, friction, count) VALUES (?, ?, ?)
			 ON CONFLICT(session_id, friction) DO UPDATE SET count = excluded.count`,
			sessionID, friction, count,
		); err != nil {
			return fmt.Errorf("structured: upsert outcome friction %s/%s: %w", sessionID, friction, err)
		}
	}
	return nil
}

// ProcessStatsCache parses the root-level `stats-cache.json` snapshot
// into daily_stats and model_usage rows.
func ProcessStatsCache(ex Execer, data []byte) error {
	var stats models.StatsCache
	if err := json.Unmarshal(data, &stats); err != nil {
		return fmt.Errorf("structured: parse stats cache: %w", err)
	}

	for _, day := range stats.DailyActivity {
		if _, err := ex.Exec(
			`INSERT INTO daily_stats (date, total_sessions, total_messages, longest_session) VALUES (?, ?, ?, ?)
			 ON CONFLICT(date) DO UPDATE SET total_sessions = excluded.total_sessions,
			   total_messages = excluded.total_messages, longest_session = excluded.longest_session`,
			day.Date, day.TotalSessions, day.TotalMessages, day.LongestSession,
		); err != nil {
			return fmt.Errorf("structured: upsert daily stat %s: %w", day.Date, err)
		}
	}

	for model, usage := range stats.ModelUsage {
		count := 0
		for _, v := range usage {
			count += v
		}
		if _, err := ex.Exec(
			`INSERT INTO model_usage (date, model, count) VALUES (?, ?, ?)
			 ON CONFLICT(date, model) DO UPDATE SET count = excluded.count`,
			stats.LastComputedDate, model, count,
		); err != nil {
			return fmt.Errorf("structured: upsert model usage %s: %w", model, err)
		}
	}
	return nil
}

// ProcessPlanMarkdown content-addresses a plan file and mirrors it into
// FTS under the "plan" kind. Empty/whitespace-only plans are skipped.
func ProcessPlanMarkdown(ex Execer, data []byte) (hash string, skipped bool, err error) {
	if strings.TrimSpace(string(data)) == "" {
		return "", true, nil
	}
	hash, _, err = blob.Put(ex, data, "plan")
	if err != nil {
		return "", false, fmt.Errorf("structured: store plan: %w", err)
	}
	if err := fts.Index(ex, hash, "plan", string(data)); err != nil {
		return "", false, fmt.Errorf("structured: index plan: %w", err)
	}
	return hash, false, nil
}

// ProcessHistoryLines content-addresses each non-empty `display` field
// of a `history.jsonl` file's lines and mirrors it into FTS under the
// "history_prompt" kind. Lines that fail to parse or lack a display
// field are skipped without aborting the file.
func ProcessHistoryLines(ex Execer, lines []string) (processed int, err error) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		var entry struct {
			Display string `json:"display"`
		}
		if err := json.Unmarshal([]byte(trimmed), &entry); err != nil {
			continue
		}
		if entry.Display == "" {
			continue
		}

		hash, _, putErr := blob.Put(ex, []byte(entry.Display), "history_prompt")
		if putErr != nil {
			return processed, fmt.Errorf("structured: store history entry: %w", putErr)
		}
		if err := fts.Index(ex, hash, "history_prompt", entry.Display); err != nil {
			return processed, fmt.Errorf("structured: index history entry: %w", err)
		}
		processed++
	}
	return processed, nil
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func coalesce(primary, fallback string) string {
	if primary != "" {
		return primary
	}
	return fallback
}

func slugOf(projectPath string) string {
	if projectPath == "" {
		return ""
	}
	return filepath.Base(projectPath)
}
