// Package report renders the run deliverables: the per-chunk validation
// CSV and the PDF trust report handed to dataset consumers.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"aird/internal/types"
)

// ValidationRow is one line of the validation CSV.
type ValidationRow struct {
	File         string
	ChunkID      string
	Section      string
	AITrustScore float64
	Passed       bool
}

// BuildValidationRows converts chunk metrics into CSV rows, marking each
// chunk against the score threshold.
func BuildValidationRows(metrics []types.ChunkMetrics, threshold float64) []ValidationRow {
	rows := make([]ValidationRow, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, ValidationRow{
			File:         m.File,
			ChunkID:      m.ChunkID,
			Section:      m.Section,
			AITrustScore: m.AITrustScore,
			Passed:       m.AITrustScore >= threshold,
		})
	}
	return rows
}

// ValidationCSV renders the rows with a header line.
func ValidationCSV(rows []ValidationRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"file", "chunk_id", "section", "AI_Trust_Score", "status"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		status := "fail"
		if r.Passed {
			status = "pass"
		}
		rec := []string{r.File, r.ChunkID, r.Section, fmt.Sprintf("%.1f", r.AITrustScore), status}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
