// Package store archives completed simulation runs in SQLite. Runs are
// append-only; the archive exists for post-hoc analysis and for the MCP
// resources, never for feeding state back into a simulation.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/softphys/tensegrity/pkg/sim"
	"github.com/softphys/tensegrity/pkg/state"
)

// RunRecord is the archive row describing one completed run.
type RunRecord struct {
	ID            int64     `json:"id"`
	Scenario      string    `json:"scenario"`
	Seed          int64     `json:"seed"`
	NSteps        int       `json:"n_steps"`
	FinalH        float64   `json:"final_h"`
	IncidentCount int       `json:"incident_count"`
	EventCount    int       `json:"event_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the archive database at dbPath. WAL mode
// is enabled for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the tables if they don't exist. The energy and field
// series are stored as one JSON blob per run; events and incidents get
// their own rows so they can be queried by node, actor and step.
func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scenario TEXT NOT NULL,
		seed INTEGER NOT NULL,
		n_steps INTEGER NOT NULL,
		final_h REAL NOT NULL,
		incident_count INTEGER NOT NULL,
		event_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,

		-- Full history payload (energy series, per-node series)
		history JSON NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_events (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		actor TEXT NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_incidents (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		step INTEGER NOT NULL,
		node TEXT NOT NULL,
		type TEXT NOT NULL,
		severity REAL NOT NULL,
		bad REAL NOT NULL,
		e_local REAL NOT NULL,
		health REAL NOT NULL,
		complexity REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario);
	CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_incidents_run ON run_incidents(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_incidents_node ON run_incidents(node);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create archive tables: %w", err)
	}
	return nil
}

// SaveRun archives a completed run and returns its record. The
// history's events and incidents are flattened into their own tables;
// everything else travels in the JSON blob.
func (s *Store) SaveRun(scenario string, seed int64, hist *sim.History) (RunRecord, error) {
	payload, err := json.Marshal(hist)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to marshal history: %w", err)
	}

	nSteps := 0
	finalH := 0.0
	if n := len(hist.Steps); n > 0 {
		nSteps = hist.Steps[n-1]
		finalH = hist.H[n-1]
	}

	tx, err := s.db.Begin()
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO runs (scenario, seed, n_steps, final_h, incident_count, event_count, history)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scenario, seed, nSteps, finalH, len(hist.Incidents), len(hist.Events), payload,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, ev := range hist.Events {
		if _, err := tx.Exec(
			`INSERT INTO run_events (run_id, step, actor, kind, description) VALUES (?, ?, ?, ?, ?)`,
			runID, ev.Step, ev.Actor, string(ev.Kind), ev.Description,
		); err != nil {
			return RunRecord{}, fmt.Errorf("failed to insert event: %w", err)
		}
	}

	for _, inc := range hist.Incidents {
		if _, err := tx.Exec(
			`INSERT INTO run_incidents (run_id, step, node, type, severity, bad, e_local, health, complexity)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, inc.TimeStep, inc.Node, inc.Type, inc.Severity, inc.Bad, inc.ELocal, inc.Health, inc.Complexity,
		); err != nil {
			return RunRecord{}, fmt.Errorf("failed to insert incident: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return RunRecord{}, fmt.Errorf("failed to commit run: %w", err)
	}

	return s.GetRun(runID)
}

// GetRun returns the archive record for one run.
func (s *Store) GetRun(id int64) (RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, scenario, seed, n_steps, final_h, incident_count, event_count, created_at
		 FROM runs WHERE id = ?`, id,
	)
	var rec RunRecord
	if err := row.Scan(&rec.ID, &rec.Scenario, &rec.Seed, &rec.NSteps, &rec.FinalH,
		&rec.IncidentCount, &rec.EventCount, &rec.CreatedAt); err != nil {
		return RunRecord{}, fmt.Errorf("failed to load run %d: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first, optionally
// filtered by scenario name ("" matches all).
func (s *Store) ListRuns(scenario string, limit int) ([]RunRecord, error) {
	query := `SELECT id, scenario, seed, n_steps, final_h, incident_count, event_count, created_at
	          FROM runs`
	args := []any{}
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Scenario, &rec.Seed, &rec.NSteps, &rec.FinalH,
			&rec.IncidentCount, &rec.EventCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadHistory reconstructs the full history of an archived run from its
// JSON payload.
func (s *Store) LoadHistory(id int64) (*sim.History, error) {
	row := s.db.QueryRow(`SELECT history FROM runs WHERE id = ?`, id)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, fmt.Errorf("failed to load run %d history: %w", id, err)
	}
	var hist sim.History
	if err := json.Unmarshal(payload, &hist); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %d history: %w", id, err)
	}
	return &hist, nil
}

// IncidentsByNode returns how many archived incidents each node has
// accumulated across all runs of a scenario ("" matches all runs).
func (s *Store) IncidentsByNode(scenario string) (map[string]int, error) {
	query := `SELECT i.node, COUNT(*) FROM run_incidents i`
	args := []any{}
	if scenario != "" {
		query += ` JOIN runs r ON r.id = i.run_id WHERE r.scenario = ?`
		args = append(args, scenario)
	}
	query += ` GROUP BY i.node`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var node string
		var count int
		if err := rows.Scan(&node, &count); err != nil {
			return nil, fmt.Errorf("failed to scan incident count: %w", err)
		}
		out[node] = count
	}
	return out, rows.Err()
}

// Incidents returns the archived incidents of one run in step order.
func (s *Store) Incidents(runID int64) ([]state.Incident, error) {
	rows, err := s.db.Query(
		`SELECT step, node, type, severity, bad, e_local, health, complexity
		 FROM run_incidents WHERE run_id = ? ORDER BY rowid`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load incidents: %w", err)
	}
	defer rows.Close()

	var out []state.Incident
	for rows.Next() {
		var inc state.Incident
		if err := rows.Scan(&inc.TimeStep, &inc.Node, &inc.Type, &inc.Severity,
			&inc.Bad, &inc.ELocal, &inc.Health, &inc.Complexity); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}
