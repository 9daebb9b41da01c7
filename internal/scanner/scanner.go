// Package scanner walks the configured source directories and classifies
// every file it finds into a FileKind the ingest pipeline knows how to
// handle, skipping directories and extensions that are never transcripts.
package scanner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flyingrobots/blacklight/pkg/log"
)

// FileKind identifies which ingest handler owns a discovered file.
type FileKind int

const (
	// KindUnknown is never processed; it exists only to let classifiers
	// return a zero value distinct from a real kind.
	KindUnknown FileKind = iota
	// KindClaudeSession is a Claude Code session transcript (JSONL).
	KindClaudeSession
	// KindSessionIndex is a `sessions-index.json` project-level listing.
	KindSessionIndex
	// KindDesktopSessionIndex is a single-session desktop index file.
	KindDesktopSessionIndex
	// KindGeminiSession is a Gemini CLI session transcript (JSON).
	KindGeminiSession
	// KindCodexSession is a Codex CLI session transcript (JSONL).
	KindCodexSession
	// KindTaskFile lists background task state for a session.
	KindTaskFile
	// KindFacetFile holds enrichment facets for a session.
	KindFacetFile
	// KindStatsCache is the root-level aggregate stats snapshot.
	KindStatsCache
	// KindPlanFile is a `plans/**/*.md` planning document.
	KindPlanFile
	// KindHistoryFile is the root-level `history.jsonl` prompt log.
	KindHistoryFile
	// KindTodoJson is a todo-list snapshot; classified but never
	// dispatched to a handler (scan-only, see design notes).
	KindTodoJson
	// KindToolResultTxt is a standalone tool-result capture under a
	// session's tool-results directory; classified but never dispatched
	// (its content already reaches the store inline via the Session
	// JSONL tool_result block that references the same tool_use_id).
	KindToolResultTxt
)

func (k FileKind) String() string {
	switch k {
	case KindClaudeSession:
		return "claude_session"
	case KindSessionIndex:
		return "session_index"
	case KindDesktopSessionIndex:
		return "desktop_session_index"
	case KindGeminiSession:
		return "gemini_session"
	case KindCodexSession:
		return "codex_session"
	case KindTaskFile:
		return "task_file"
	case KindFacetFile:
		return "facet_file"
	case KindStatsCache:
		return "stats_cache"
	case KindPlanFile:
		return "plan_file"
	case KindHistoryFile:
		return "history_file"
	case KindTodoJson:
		return "todo_json"
	case KindToolResultTxt:
		return "tool_result_txt"
	default:
		return "unknown"
	}
}

// FileEntry is one discovered file awaiting change detection.
type FileEntry struct {
	Path    string
	Kind    FileKind
	MtimeMs int64
	Size    int64
}

// skipDirs are never descended into: they hold dependency trees, VCS
// metadata, build output, or per-assistant cache/telemetry state, never
// session transcripts. The assistant-specific names (cache, statsig,
// shell-snapshots, session-env, ide, paste-cache, debug, telemetry) are
// the configurable default set; config.Load extends this map with any
// additional names a deployment's config file lists.
var skipDirs = map[string]bool{
	"node_modules":    true,
	".git":            true,
	".cache":          true,
	"dist":            true,
	"build":           true,
	"target":          true,
	"vendor":          true,
	"cache":           true,
	"statsig":         true,
	"shell-snapshots": true,
	"session-env":     true,
	"ide":             true,
	"paste-cache":     true,
	"debug":           true,
	"telemetry":       true,
}

// SetSkipDirs extends the set of directory basenames never descended
// into, beyond the built-in defaults. Intended to be called once at
// startup from configuration.
func SetSkipDirs(extra []string) {
	for _, name := range extra {
		skipDirs[name] = true
	}
}

// skipFiles are exact basenames never worth classifying.
var skipFiles = map[string]bool{
	".DS_Store":     true,
	"settings.json": true,
}

// skipExtensions are never session or side-data files regardless of
// directory.
var skipExtensions = map[string]bool{
	".lock":          true,
	".highwatermark": true,
}

// Classify maps a single path to the FileKind it represents, based on its
// directory shape and basename, mirroring the layout each assistant's CLI
// actually writes to disk.
func Classify(path string) FileKind {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	dir := filepath.ToSlash(filepath.Dir(path))
	dirSlash := dir + "/"

	if skipFiles[base] || skipExtensions[ext] {
		return KindUnknown
	}

	switch {
	case base == "stats-cache.json":
		return KindStatsCache
	case base == "history.jsonl":
		return KindHistoryFile
	case base == "sessions-index.json" && strings.Contains(dir, "/projects/"):
		return KindSessionIndex
	case strings.HasPrefix(base, "local_") && ext == ".json" && strings.Contains(dir, "claude-code-sessions"):
		return KindDesktopSessionIndex
	case ext == ".txt" && strings.Contains(dir, "/tool-results") && strings.HasPrefix(base, "toolu_"):
		return KindToolResultTxt
	case ext == ".jsonl" && strings.Contains(dir, "/projects/"):
		return KindClaudeSession
	case ext == ".jsonl" && strings.Contains(dir, "/sessions/") && strings.HasPrefix(base, "rollout-"):
		return KindCodexSession
	case ext == ".json" && strings.Contains(dirSlash, "/chats/") && strings.HasPrefix(base, "session-"):
		return KindGeminiSession
	case ext == ".md" && strings.Contains(dir, "/plans"):
		return KindPlanFile
	case ext == ".json" && strings.Contains(dir, "/tasks/"):
		return KindTaskFile
	case ext == ".json" && strings.Contains(dirSlash, "usage-data/facets/"):
		return KindFacetFile
	case ext == ".json" && strings.Contains(dir, "/todos/"):
		return KindTodoJson
	default:
		return KindUnknown
	}
}

// Scan walks every root in roots, classifying every regular file found.
// Results are sorted by (kind, path) so that side-data files are always
// processed in a stable, reproducible order relative to transcripts of
// the same kind. A directory that cannot be opened due to permissions is
// logged and treated as an empty subtree rather than aborting the scan.
func Scan(roots []string) ([]FileEntry, error) {
	var entries []FileEntry

	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsPermission(err) {
					log.Warnf("scanner: permission denied, skipping %s", path)
					return filepath.SkipDir
				}
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if info.IsDir() {
				if skipDirs[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}

			kind := Classify(path)
			if kind == KindUnknown {
				return nil
			}
			entries = append(entries, FileEntry{
				Path:    path,
				Kind:    kind,
				MtimeMs: info.ModTime().UnixMilli(),
				Size:    info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// DiscoverExtraSources looks for well-known assistant data directories
// under the user's home directory (~/.codex, ~/.gemini, the Claude
// desktop session index directory) that the configured source list may
// not have named explicitly, so a default run still picks them up.
func DiscoverExtraSources(home string) []string {
	candidates := []string{
		filepath.Join(home, ".codex", "sessions"),
		filepath.Join(home, ".gemini"),
		filepath.Join(home, ".claude", "projects"),
		filepath.Join(home, "claude-code-sessions"),
	}

	var found []string
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			found = append(found, c)
		}
	}
	return found
}
