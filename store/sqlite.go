package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run is one (experiment, run index) pair of a training session.
type Run struct {
	ID         string
	Experiment string
	Index      int
	Config     string
	CreatedAt  time.Time
}

// Episode is the persisted outcome of a finished episode.
type Episode struct {
	RunID      string
	Episode    int
	Steps      int
	Return     float64
	Result     string
	Terminated bool
	Truncated  bool
	TimedOut   bool
	Error      string
	Duration   time.Duration
}

// SQLite stores runs and episodes in a single database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	// the recorder writes from a single goroutine
	db.SetMaxOpenConns(1)
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			experiment TEXT NOT NULL,
			run_index INTEGER NOT NULL,
			config TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			episode INTEGER NOT NULL,
			steps INTEGER NOT NULL,
			total_reward REAL NOT NULL,
			result TEXT NOT NULL,
			terminated INTEGER NOT NULL DEFAULT 0,
			truncated INTEGER NOT NULL DEFAULT 0,
			timed_out INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_run_id ON episodes(run_id, episode)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveRun inserts run, assigning an ID when it has none.
func (s *SQLite) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (id, experiment, run_index, config) VALUES (?, ?, ?, ?)`,
		run.ID, run.Experiment, run.Index, run.Config,
	)
	return err
}

func (s *SQLite) GetRun(id string) (*Run, error) {
	run := &Run{}
	var config sql.NullString
	err := s.db.QueryRow(
		`SELECT id, experiment, run_index, config, created_at FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Experiment, &run.Index, &config, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.Config = config.String
	return run, nil
}

func (s *SQLite) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT id, experiment, run_index, config, created_at FROM runs ORDER BY created_at, run_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var config sql.NullString
		if err := rows.Scan(&run.ID, &run.Experiment, &run.Index, &config, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Config = config.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLite) SaveEpisode(ep Episode) error {
	_, err := s.db.Exec(
		`INSERT INTO episodes (
			run_id, episode, steps, total_reward, result,
			terminated, truncated, timed_out, error, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.RunID, ep.Episode, ep.Steps, ep.Return, ep.Result,
		ep.Terminated, ep.Truncated, ep.TimedOut, ep.Error, ep.Duration.Milliseconds(),
	)
	return err
}

func (s *SQLite) Episodes(runID string) ([]Episode, error) {
	rows, err := s.db.Query(
		`SELECT run_id, episode, steps, total_reward, result, terminated, truncated, timed_out, error, duration_ms
		FROM episodes WHERE run_id = ? ORDER BY episode`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var ep Episode
		var errText sql.NullString
		var ms int64
		if err := rows.Scan(&ep.RunID, &ep.Episode, &ep.Steps, &ep.Return, &ep.Result,
			&ep.Terminated, &ep.Truncated, &ep.TimedOut, &errText, &ms); err != nil {
			return nil, err
		}
		ep.Error = errText.String
		ep.Duration = time.Duration(ms) * time.Millisecond
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// RunStats aggregates the episodes of a run.
type RunStats struct {
	Episodes   int
	MeanReturn float64
	Wins       int
}

func (s *SQLite) Stats(runID string) (RunStats, error) {
	var stats RunStats
	var mean sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT COUNT(*), AVG(total_reward), COALESCE(SUM(CASE WHEN result = 'victory' THEN 1 ELSE 0 END), 0)
		FROM episodes WHERE run_id = ?`, runID,
	).Scan(&stats.Episodes, &mean, &stats.Wins)
	if err != nil {
		return stats, err
	}
	stats.MeanReturn = mean.Float64
	return stats, nil
}
