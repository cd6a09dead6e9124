// Package sweepdb persists decode sessions and per-sweep summaries to
// SQLite.
package sweepdb

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/spinscan/internal/c16/sweep"
	"github.com/banshee-data/spinscan/internal/monitoring"
)

// schema.sql defines the sessions and sweeps tables.
//
//go:embed schema.sql
var schemaSQL string

// SweepDB wraps the SQLite handle for the sweep summary store.
type SweepDB struct {
	*sql.DB
}

// Open opens (creating if needed) the sweep database at path and applies
// the schema.
func Open(path string) (*SweepDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply sweep schema: %w", err)
	}

	monitoring.Logf("initialized sweep database schema")
	return &SweepDB{db}, nil
}

// StartSession creates a new decode session record and returns its id.
func (db *SweepDB) StartSession(sensorID, notes string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (id, sensor_id, notes) VALUES (?, ?, ?)`,
		id, sensorID, notes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}
	return id, nil
}

// RecordSweep stores the summary of a completed sweep under a session.
func (db *SweepDB) RecordSweep(sessionID string, s *sweep.Sweep) error {
	summary := s.Summarize()
	_, err := db.Exec(
		`INSERT INTO sweeps (
			session_id, sweep_id, seq, record_count, return_count,
			min_azimuth, max_azimuth, coverage_deg,
			mean_distance_m, stddev_distance_m, start_ns, end_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, s.ID, s.Seq, summary.RecordCount, summary.ReturnCount,
		s.MinAzimuth, s.MaxAzimuth, summary.Coverage,
		summary.MeanDistance, summary.StddevDistance,
		s.StartTime.UnixNano(), s.EndTime.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sweep: %w", err)
	}
	return nil
}

// SweepRow is one stored sweep summary.
type SweepRow struct {
	SweepID        string
	Seq            int64
	RecordCount    int
	ReturnCount    int
	MinAzimuth     float64
	MaxAzimuth     float64
	Coverage       float64
	MeanDistance   float64
	StddevDistance float64
	StartNS        int64
	EndNS          int64
}

// SessionSweeps returns the stored sweeps for a session in emission order.
func (db *SweepDB) SessionSweeps(sessionID string) ([]SweepRow, error) {
	rows, err := db.Query(
		`SELECT sweep_id, seq, record_count, return_count,
			min_azimuth, max_azimuth, coverage_deg,
			mean_distance_m, stddev_distance_m, start_ns, end_ns
		FROM sweeps WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SweepRow
	for rows.Next() {
		var r SweepRow
		if err := rows.Scan(
			&r.SweepID, &r.Seq, &r.RecordCount, &r.ReturnCount,
			&r.MinAzimuth, &r.MaxAzimuth, &r.Coverage,
			&r.MeanDistance, &r.StddevDistance, &r.StartNS, &r.EndNS,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
