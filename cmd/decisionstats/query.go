package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// SessionSummary aggregates every recorded cycle of one session.
type SessionSummary struct {
	SessionID          string
	Cycles             int64
	Dispatched         int64
	Accepted           int64
	Assumed            int64
	MeanScore          float64
	MaxAggregateHeight int64
	MaxHoles           int64
}

// Count is how often a command or stage was chosen by a session.
type Count struct {
	SessionID string
	Key       string
	N         int64
}

// findParquetFiles lists finished parquet files under root. In-progress files
// live in tmp/ and are skipped.
func findParquetFiles(root string) ([]string, error) {
	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "tmp" && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, os.ErrNotExist) {
			return nil, nil
		}
		return nil, walkErr
	}
	sort.Strings(files)
	return files, nil
}

func findParquetFilesMulti(roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, r := range roots {
		files, err := findParquetFiles(r)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// openDuckDB opens an in-memory database with a decisions view over the files.
func openDuckDB(parquetFiles []string) (*sql.DB, error) {
	if len(parquetFiles) == 0 {
		return nil, fmt.Errorf("no parquet files")
	}
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	arr := make([]string, 0, len(parquetFiles))
	for _, p := range parquetFiles {
		arr = append(arr, "'"+escapeSQLString(p)+"'")
	}
	sqlText := "CREATE OR REPLACE VIEW decisions AS SELECT * FROM read_parquet([" + strings.Join(arr, ",") + "], filename=true)"
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func querySessionSummaries(ctx context.Context, db *sql.DB, sessionID string) ([]SessionSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			session_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE dispatched),
			COUNT(*) FILTER (WHERE accepted),
			COUNT(*) FILTER (WHERE assumed_footprint),
			AVG(score),
			CAST(MAX(aggregate_height) AS BIGINT),
			CAST(MAX(list_sum(holes)) AS BIGINT)
		FROM decisions
		WHERE CAST(? AS VARCHAR) = '' OR session_id = ?
		GROUP BY session_id
		ORDER BY session_id`, sessionID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var maxHoles sql.NullInt64
		if err := rows.Scan(&s.SessionID, &s.Cycles, &s.Dispatched, &s.Accepted, &s.Assumed, &s.MeanScore, &s.MaxAggregateHeight, &maxHoles); err != nil {
			return nil, err
		}
		s.MaxHoles = maxHoles.Int64
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryCounts groups cycles by session and the given column (command or stage).
func queryCounts(ctx context.Context, db *sql.DB, column, sessionID string) ([]Count, error) {
	switch column {
	case "command", "stage":
	default:
		return nil, fmt.Errorf("cannot count by %q", column)
	}
	rows, err := db.QueryContext(ctx, `
		SELECT session_id, `+column+`, COUNT(*) AS n
		FROM decisions
		WHERE CAST(? AS VARCHAR) = '' OR session_id = ?
		GROUP BY session_id, `+column+`
		ORDER BY session_id, n DESC, `+column, sessionID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.SessionID, &c.Key, &c.N); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
