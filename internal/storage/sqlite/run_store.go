package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/steerlab/fuzzdrive/internal/sim"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is a single simulation run.
type Run struct {
	ID                string `json:"id"`
	StartedUnixNanos  int64  `json:"started_unix_nanos"`
	FinishedUnixNanos *int64 `json:"finished_unix_nanos,omitempty"`

	ArenaWidth  float64 `json:"arena_width"`
	ArenaHeight float64 `json:"arena_height"`

	// ParamsJSON records the tuning configuration the run was started with.
	ParamsJSON string `json:"params_json"`
}

// CreateRun inserts a new run and returns its generated id.
func (db *DB) CreateRun(startedNanos int64, arenaWidth, arenaHeight float64, paramsJSON string) (string, error) {
	if paramsJSON == "" {
		paramsJSON = "{}"
	}
	id := uuid.New().String()
	_, err := db.Exec(`
		INSERT INTO runs (id, started_unix_nanos, arena_width, arena_height, params_json)
		VALUES (?, ?, ?, ?, ?)`,
		id, startedNanos, arenaWidth, arenaHeight, paramsJSON)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun records the end timestamp of a run.
func (db *DB) FinishRun(id string, finishedNanos int64) error {
	res, err := db.Exec(`UPDATE runs SET finished_unix_nanos = ? WHERE id = ?`, finishedNanos, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun loads a single run by id.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, started_unix_nanos, finished_unix_nanos, arena_width, arena_height, params_json
		FROM runs WHERE id = ?`, id)

	var r Run
	var finished sql.NullInt64
	err := row.Scan(&r.ID, &r.StartedUnixNanos, &finished, &r.ArenaWidth, &r.ArenaHeight, &r.ParamsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if finished.Valid {
		r.FinishedUnixNanos = &finished.Int64
	}
	return &r, nil
}

// ListRuns returns runs ordered newest first, up to limit (default 50).
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, started_unix_nanos, finished_unix_nanos, arena_width, arena_height, params_json
		FROM runs ORDER BY started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.StartedUnixNanos, &finished, &r.ArenaWidth, &r.ArenaHeight, &r.ParamsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedUnixNanos = &finished.Int64
		}
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// InsertSamples writes a batch of tick samples for a run in one transaction.
func (db *DB) InsertSamples(runID string, samples []sim.TickSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin sample batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO samples (
			run_id, tick, ts_unix_nanos,
			x, y, heading_deg,
			left_distance, center_distance, right_distance,
			left_near, left_medium, left_far,
			center_near, center_medium, center_far,
			right_near, right_medium, right_far,
			turn, accel, speed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		_, err := stmt.Exec(
			runID, s.Tick, s.UnixNanos,
			s.X, s.Y, s.HeadingDeg,
			s.LeftDistance, s.CenterDistance, s.RightDistance,
			s.Control.Left.Near, s.Control.Left.Medium, s.Control.Left.Far,
			s.Control.Center.Near, s.Control.Center.Medium, s.Control.Center.Far,
			s.Control.Right.Near, s.Control.Right.Medium, s.Control.Right.Far,
			s.Control.Turn, s.Control.Accel, s.Speed,
		)
		if err != nil {
			return fmt.Errorf("insert sample tick %d: %w", s.Tick, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sample batch: %w", err)
	}
	return nil
}

// GetSamples loads samples for a run ordered by tick. A non-positive limit
// loads all samples.
func (db *DB) GetSamples(runID string, limit int) ([]sim.TickSample, error) {
	query := `
		SELECT tick, ts_unix_nanos,
			x, y, heading_deg,
			left_distance, center_distance, right_distance,
			left_near, left_medium, left_far,
			center_near, center_medium, center_far,
			right_near, right_medium, right_far,
			turn, accel, speed
		FROM samples WHERE run_id = ? ORDER BY tick`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []sim.TickSample
	for rows.Next() {
		var s sim.TickSample
		err := rows.Scan(
			&s.Tick, &s.UnixNanos,
			&s.X, &s.Y, &s.HeadingDeg,
			&s.LeftDistance, &s.CenterDistance, &s.RightDistance,
			&s.Control.Left.Near, &s.Control.Left.Medium, &s.Control.Left.Far,
			&s.Control.Center.Near, &s.Control.Center.Medium, &s.Control.Center.Far,
			&s.Control.Right.Near, &s.Control.Right.Medium, &s.Control.Right.Far,
			&s.Control.Turn, &s.Control.Accel, &s.Speed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}
