package eventlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/protodrill/pkg/model"

	_ "modernc.org/sqlite"
)

// Store keeps runs and their events in SQLite with WAL mode for
// concurrent access. One database can hold many runs; events are tagged
// with the run ID they belong to.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and initializes the
// schema.
func NewStore(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp from retry.go with the default config.
// All store write operations should use this to handle transient SQLite
// errors (BUSY, LOCKED, IOERR_SHORT_READ) under concurrent access.
func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		scenario   TEXT NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL REFERENCES runs(id),
		node_id    INTEGER NOT NULL,
		kind       TEXT NOT NULL,
		resource   TEXT,
		detail     TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);
	CREATE INDEX IF NOT EXISTS idx_events_run_kind ON events(run_id, kind);
	CREATE INDEX IF NOT EXISTS idx_events_run_node ON events(run_id, node_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// CreateRun registers a new scenario run and returns it. The run ID is a
// fresh UUID; every event recorded through the run's sink carries it.
func (s *Store) CreateRun(scenario string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		Scenario:  scenario,
		StartedAt: time.Now().UTC(),
	}
	err := retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO runs (id, scenario, started_at) VALUES (?, ?, ?)`,
			run.ID, run.Scenario, run.StartedAt.Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT id, scenario, started_at FROM runs WHERE id = ?`, id)
	var r model.Run
	var startedStr string
	if err := row.Scan(&r.ID, &r.Scenario, &startedStr); err != nil {
		return nil, err
	}
	var parseErr error
	r.StartedAt, parseErr = time.Parse(time.RFC3339Nano, startedStr)
	if parseErr != nil {
		return nil, fmt.Errorf("parse started_at for run %s: %w", r.ID, parseErr)
	}
	return &r, nil
}

// ListRuns returns all runs, most recent first. Insertion order is
// used rather than started_at: RFC3339Nano trims trailing zeros, so its
// lexicographic order is not quite chronological.
func (s *Store) ListRuns() ([]model.Run, error) {
	rows, err := s.db.Query(`SELECT id, scenario, started_at FROM runs ORDER BY rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var startedStr string
		if err := rows.Scan(&r.ID, &r.Scenario, &startedStr); err != nil {
			return nil, err
		}
		var parseErr error
		r.StartedAt, parseErr = time.Parse(time.RFC3339Nano, startedStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", r.ID, parseErr)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run, or an error if the
// store is empty.
func (s *Store) LatestRun() (*model.Run, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("no runs recorded")
	}
	return &runs[0], nil
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// InsertEvent appends an event to the log. Returns the auto-generated
// row ID.
func (s *Store) InsertEvent(e *model.Event) (int64, error) {
	var lastID int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(
			`INSERT INTO events (run_id, node_id, kind, resource, detail, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.RunID, int(e.NodeID), string(e.Kind), e.Resource, e.Detail,
			e.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		lastID, err = res.LastInsertId()
		return err
	})
	return lastID, err
}

// ListEvents returns a run's events in append order.
func (s *Store) ListEvents(runID string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, node_id, kind, COALESCE(resource,''), COALESCE(detail,''), created_at
		 FROM events WHERE run_id = ?
		 ORDER BY id ASC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsByKind returns a run's events of one kind in append order.
func (s *Store) EventsByKind(runID string, kind model.EventKind) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, node_id, kind, COALESCE(resource,''), COALESCE(detail,''), created_at
		 FROM events WHERE run_id = ? AND kind = ?
		 ORDER BY id ASC`,
		runID, string(kind),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CriticalSectionEvents returns a run's cs_enter and cs_exit events for
// one resource, interleaved in append order. Because all nodes append to
// one store, the append order is the observation order; a safe run shows
// strict enter/exit alternation with matching node IDs.
func (s *Store) CriticalSectionEvents(runID, resource string) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, node_id, kind, COALESCE(resource,''), COALESCE(detail,''), created_at
		 FROM events
		 WHERE run_id = ? AND resource = ? AND kind IN (?, ?)
		 ORDER BY id ASC`,
		runID, resource, string(model.EventCSEnter), string(model.EventCSExit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// CountEvents returns the total number of events recorded for a run.
func (s *Store) CountEvents(runID string) int64 {
	var count int64
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE run_id = ?`, runID,
	).Scan(&count); err != nil {
		return 0
	}
	return count
}

func scanEvents(rows *sql.Rows) ([]model.Event, error) {
	var events []model.Event
	for rows.Next() {
		var e model.Event
		var nodeID int
		var kindStr, createdStr string
		if err := rows.Scan(&e.ID, &e.RunID, &nodeID, &kindStr, &e.Resource, &e.Detail, &createdStr); err != nil {
			return nil, err
		}
		e.NodeID = model.NodeID(nodeID)
		e.Kind = model.EventKind(kindStr)
		var parseErr error
		e.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, createdStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse created_at for event %d: %w", e.ID, parseErr)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ---------------------------------------------------------------------------
// Run-scoped sink
// ---------------------------------------------------------------------------

// RunSink adapts a Store into a Sink scoped to one run: every recorded
// event is tagged with the run ID. Insert errors are swallowed (a sink
// never fails its caller); the retry layer has already done what it can.
type RunSink struct {
	store *Store
	runID string
}

// SinkFor returns a Sink that records events against runID.
func (s *Store) SinkFor(runID string) *RunSink {
	return &RunSink{store: s, runID: runID}
}

// Record implements Sink.
func (rs *RunSink) Record(node model.NodeID, kind model.EventKind, resource, detail string) {
	_, _ = rs.store.InsertEvent(&model.Event{
		RunID:     rs.runID,
		NodeID:    node,
		Kind:      kind,
		Resource:  resource,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
}
