package store

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/tetrisbot/board"
	"github.com/brensch/tetrisbot/session"
)

// SchemaVersion is written into every file's key/value metadata.
const SchemaVersion = "decision_row_v1"

// NearCompleteFraction is the fill ratio at which a row counts as close to clearing.
const NearCompleteFraction = 0.7

// DecisionRow is one decision cycle of one session.
//
// Heights, Holes and the aggregates describe the settled stack, with the
// active piece's cells removed. PieceRows[i], PieceCols[i] is one piece cell.
type DecisionRow struct {
	SessionID string `parquet:"session_id,dict"`
	Cycle     int64  `parquet:"cycle"`
	UnixNano  int64  `parquet:"unix_nano"`
	State     string `parquet:"state,dict"`

	Command   string  `parquet:"command,dict"`
	Stage     string  `parquet:"stage,dict"`
	Target    int32   `parquet:"target"`
	Score     float64 `parquet:"score"`
	Rationale string  `parquet:"rationale"`
	Assumed   bool    `parquet:"assumed_footprint"`

	Dispatched bool `parquet:"dispatched"`
	Accepted   bool `parquet:"accepted"`

	Width           int32   `parquet:"width"`
	Height          int32   `parquet:"height"`
	Heights         []int32 `parquet:"heights"`
	Holes           []int32 `parquet:"holes"`
	Bumpiness       int32   `parquet:"bumpiness"`
	AggregateHeight int32   `parquet:"aggregate_height"`

	PieceRows []int32 `parquet:"piece_rows"`
	PieceCols []int32 `parquet:"piece_cols"`

	NearCompleteRows []int32 `parquet:"near_complete_rows"`
}

// RowFromRecord flattens a cycle record.
func RowFromRecord(rec session.CycleRecord) DecisionRow {
	settled := board.Without(rec.Board, rec.Piece)
	prof := board.ProfileOf(settled)

	row := DecisionRow{
		SessionID:       rec.SessionID,
		Cycle:           rec.Cycle,
		UnixNano:        rec.Time.UnixNano(),
		State:           rec.State.String(),
		Command:         rec.Decision.Command.String(),
		Stage:           rec.Decision.Stage.String(),
		Target:          int32(rec.Decision.Target),
		Score:           rec.Decision.Score,
		Rationale:       rec.Decision.Rationale,
		Assumed:         rec.Decision.AssumedFootprint,
		Dispatched:      rec.Dispatched,
		Accepted:        rec.Accepted,
		Width:           int32(rec.Board.Width),
		Height:          int32(rec.Board.Height),
		Heights:         toInt32(prof.Heights),
		Holes:           toInt32(prof.Holes),
		Bumpiness:       int32(board.BumpinessOf(prof.Heights)),
		AggregateHeight: int32(prof.Aggregate()),
	}
	for _, c := range rec.Piece {
		row.PieceRows = append(row.PieceRows, int32(c.Row))
		row.PieceCols = append(row.PieceCols, int32(c.Col))
	}
	minFilled := int(math.Ceil(NearCompleteFraction * float64(settled.Width)))
	if minFilled > 0 {
		row.NearCompleteRows = toInt32(board.NearlyCompleteRows(settled, minFilled))
	}
	return row
}

func toInt32(xs []int) []int32 {
	if xs == nil {
		return nil
	}
	out := make([]int32, len(xs))
	for i, x := range xs {
		out[i] = int32(x)
	}
	return out
}

// WriteBatchParquetAtomic writes rows to outDir/tmp/name and then atomically
// moves the file into outDir, so readers never observe a partial file.
func WriteBatchParquetAtomic(outDir, name string, rows []DecisionRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("rationale"),
		parquet.KeyValueMetadata("schema", SchemaVersion),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadDecisions loads every row of a decisions file.
func ReadDecisions(path string) ([]DecisionRow, error) {
	rows, err := parquet.ReadFile[DecisionRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
