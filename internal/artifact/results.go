package artifact

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"sync"
)

// ResultRow is one row of the results table (§4.8), keyed for stable
// ordering regardless of completion order under concurrent dispatch.
type ResultRow struct {
	SequenceIndex int
	RequestIndex  int
	SequenceName  string
	RequestKey    string
	Timestamp     string
	Status        int
	DurationMs    int64
	Attempts      int
}

// ResultsWriter accumulates rows from possibly-concurrent workers under a
// single mutex (§5 "Shared resources": the results collection is written
// by multiple workers and must be serialized), and flushes them sorted by
// (sequence-index, request-index) regardless of completion order (§4.8,
// §8 "Results CSV rows are ordered...").
type ResultsWriter struct {
	mu   sync.Mutex
	rows []ResultRow
}

// NewResultsWriter returns an empty ResultsWriter.
func NewResultsWriter() *ResultsWriter {
	return &ResultsWriter{}
}

// Add appends one row. Safe for concurrent use.
func (w *ResultsWriter) Add(row ResultRow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
}

// Flush writes the CSV to path, sorted by (SequenceIndex, RequestIndex).
func (w *ResultsWriter) Flush(path string) error {
	w.mu.Lock()
	rows := make([]ResultRow, len(w.rows))
	copy(rows, w.rows)
	w.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SequenceIndex != rows[j].SequenceIndex {
			return rows[i].SequenceIndex < rows[j].SequenceIndex
		}
		return rows[i].RequestIndex < rows[j].RequestIndex
	})

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"sequence", "request", "timestamp", "status", "duration_ms", "attempts"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.SequenceName,
			r.RequestKey,
			r.Timestamp,
			strconv.Itoa(r.Status),
			strconv.FormatInt(r.DurationMs, 10),
			strconv.Itoa(r.Attempts),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
