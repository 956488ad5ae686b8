package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"peerreview/kgraph/internal/graph"
)

// ErrRunNotFound is returned for unknown run IDs
var ErrRunNotFound = errors.New("run not found")

// BeginRun records the start of a metrics batch and returns its ID
func (d *DB) BeginRun(conference string, year int, category string, seed int64) (string, error) {
	id := uuid.New().String()
	_, err := d.conn.Exec(
		`INSERT INTO runs (id, conference, year, category, seed, metrics_version, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, conference, year, category, seed, graph.MetricsVersion, time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// SaveMetrics stores rows for a run in one transaction, keeping their order
func (d *DB) SaveMetrics(runID string, rows []MetricRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO graph_metrics
		 (run_id, paper_id, section, source_type, line_index,
		  num_nodes, num_edges, avg_degree, label_entropy, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.Exec(runID, r.PaperID, r.Section, r.Source, r.LineIndex,
			r.NumNodes, r.NumEdges, r.AvgDegree, r.LabelEntropy, i); err != nil {
			return fmt.Errorf("inserting metrics for %s/%s/%s:%d: %w",
				r.PaperID, r.Section, r.Source, r.LineIndex, err)
		}
	}
	return tx.Commit()
}

// FinishRun marks a run complete with its graph count
func (d *DB) FinishRun(runID string, graphCount int) error {
	res, err := d.conn.Exec(
		"UPDATE runs SET finished_at = ?, graph_count = ? WHERE id = ?",
		time.Now().UnixMilli(), graphCount, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns one run by ID
func (d *DB) GetRun(runID string) (*Run, error) {
	var r Run
	var finished sql.NullInt64
	err := d.conn.QueryRow(
		`SELECT id, conference, year, category, seed, metrics_version,
		        started_at, finished_at, graph_count
		 FROM runs WHERE id = ?`, runID,
	).Scan(&r.ID, &r.Conference, &r.Year, &r.Category, &r.Seed, &r.MetricsVersion,
		&r.StartedAt, &finished, &r.GraphCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Int64
	}
	return &r, nil
}

// LatestRun returns the most recent finished run for a target
func (d *DB) LatestRun(conference string, year int, category string) (*Run, error) {
	var id string
	err := d.conn.QueryRow(
		`SELECT id FROM runs
		 WHERE conference = ? AND year = ? AND category = ? AND finished_at IS NOT NULL
		 ORDER BY started_at DESC, rowid DESC LIMIT 1`,
		conference, year, category,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no finished run for %s %d %s", ErrRunNotFound, conference, year, category)
	}
	if err != nil {
		return nil, err
	}
	return d.GetRun(id)
}

// MetricsForRun returns a run's rows in their saved order
func (d *DB) MetricsForRun(runID string) ([]MetricRow, error) {
	rows, err := d.conn.Query(
		`SELECT paper_id, section, source_type, line_index,
		        num_nodes, num_edges, avg_degree, label_entropy
		 FROM graph_metrics WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MetricRow
	for rows.Next() {
		var r MetricRow
		if err := rows.Scan(&r.PaperID, &r.Section, &r.Source, &r.LineIndex,
			&r.NumNodes, &r.NumEdges, &r.AvgDegree, &r.LabelEntropy); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
