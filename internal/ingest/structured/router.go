package structured

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flyingrobots/blacklight/internal/repository"
	"github.com/flyingrobots/blacklight/internal/scanner"
)

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// ProcessFile dispatches a Phase 1/Phase 3 side-data file to its handler
// based on kind, committing whatever it writes in a single transaction.
// Kinds with no handler (KindTodoJson, KindToolResultTxt) are a
// documented no-op: counted by the scanner but never indexed.
func ProcessFile(conn *repository.DBConnection, path string, kind scanner.FileKind) error {
	switch kind {
	case scanner.KindSessionIndex:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("structured: read %s: %w", path, err)
		}
		return conn.WithTx(func(tx *sqlx.Tx) error {
			_, err := ProcessSessionIndex(tx, path, data, nowRFC3339())
			return err
		})

	case scanner.KindDesktopSessionIndex:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("structured: read %s: %w", path, err)
		}
		return conn.WithTx(func(tx *sqlx.Tx) error {
			return ProcessDesktopSessionIndex(tx, path, data, nowRFC3339())
		})

	case scanner.KindTaskFile:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("structured: read %s: %w", path, err)
		}
		return conn.WithTx(func(tx *sqlx.Tx) error {
			return ProcessTaskFile(tx, path, data)
		})

	case scanner.KindFacetFile:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("structured: read %s: %w", path, err)
		}
		return conn.WithTx(func(tx *sqlx.Tx) error {
			return ProcessFacetFile(tx, path, data)
		})

	case scanner.KindStatsCache:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("structured: read %s: %w", path, err)
		}
		return conn.WithTx(func(tx *sqlx.Tx) error {
			return ProcessStatsCache(tx, data)
		})

	case scanner.KindPlanFile:
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("structured: read %s: %w", path, err)
		}
		return conn.WithTx(func(tx *sqlx.Tx) error {
			_, _, err := ProcessPlanMarkdown(tx, data)
			return err
		})

	case scanner.KindHistoryFile:
		lines, err := readLines(path)
		if err != nil {
			return fmt.Errorf("structured: read %s: %w", path, err)
		}
		return conn.WithTx(func(tx *sqlx.Tx) error {
			_, err := ProcessHistoryLines(tx, lines)
			return err
		})

	case scanner.KindTodoJson, scanner.KindToolResultTxt:
		return nil

	default:
		return fmt.Errorf("structured: no handler for kind %s", kind)
	}
}
