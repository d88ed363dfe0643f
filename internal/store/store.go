package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decisionloop/feedback-controller/internal/decision"
	_ "modernc.org/sqlite"
)

// #region errors

var (
	// ErrDuplicateKey means the derived decision key already exists.
	ErrDuplicateKey = errors.New("duplicate decision key")
	// ErrUnknownKey means no decision record exists for the key.
	ErrUnknownKey = errors.New("unknown decision key")
	// ErrOutcomeAlreadyRecorded means the record's outcome is write-once
	// and already set; the stored outcome is left unchanged.
	ErrOutcomeAlreadyRecorded = errors.New("outcome already recorded")
)

// #endregion errors

// #region schema

const indexSchema = `
CREATE TABLE IF NOT EXISTS decision_index (
	decision_key        TEXT PRIMARY KEY,
	decision_id         TEXT NOT NULL,
	recorded_at         TEXT NOT NULL,
	has_outcome         INTEGER NOT NULL DEFAULT 0,
	outcome_recorded_at TEXT
);
`

// #endregion schema

// #region store-struct

// Store is the append-only outcome store: a JSONL log that owns history
// plus a SQLite index for fast existence and outcome-state lookups. All
// mutation serializes through one mutex per instance; the log line is
// written and synced before the index row is touched.
type Store struct {
	mu      sync.Mutex
	logPath string
	logFile *os.File
	db      *sql.DB
	skipped atomic.Int64 // corrupt units ignored by the last load
}

// #endregion store-struct

// #region constructor

// NewStore opens the log and index, runs migrations, and reconciles the
// index against the log (a crash between log append and index update
// leaves the index behind; the re-scan repairs it).
func NewStore(logPath, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open log %s: %w", logPath, err)
	}

	s := &Store{logPath: logPath, logFile: f, db: db}
	if err := s.reconcile(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the log file and the index database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ferr := s.logFile.Close()
	derr := s.db.Close()
	if ferr != nil {
		return ferr
	}
	return derr
}

// DB returns the underlying *sql.DB for use by other packages
// (e.g. the controller's training history).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region append

// Append derives the decision key if unset, writes the record to the
// log durably, then indexes it. Returns the key.
func (s *Store) Append(rec decision.DecisionRecord) (string, error) {
	if rec.DecisionKey == "" {
		rec.DecisionKey = decision.NewDecisionKey(rec.DecisionID)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	// Outcomes arrive only through AttachOutcome.
	rec.Outcome = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM decision_index WHERE decision_key = ?`, rec.DecisionKey,
	).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("check key: %w", err)
	}
	if n > 0 {
		return "", fmt.Errorf("%w: %s", ErrDuplicateKey, rec.DecisionKey)
	}

	if err := s.appendEntry(logEntry{Kind: kindDecision, Record: &rec}); err != nil {
		return "", err
	}

	_, err = s.db.Exec(
		`INSERT INTO decision_index (decision_key, decision_id, recorded_at, has_outcome)
		 VALUES (?, ?, ?, 0)`,
		rec.DecisionKey, rec.DecisionID, rec.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		// Log entry is durable; the index will be repaired on next open.
		return "", fmt.Errorf("index decision %s: %w", rec.DecisionKey, err)
	}
	return rec.DecisionKey, nil
}

// #endregion append

// #region attach-outcome

// AttachOutcome appends an outcome-patch entry for the key and flips
// the index row. Write-once per record: a second call fails with
// ErrOutcomeAlreadyRecorded and leaves the stored outcome unchanged.
func (s *Store) AttachOutcome(decisionKey string, outcome decision.Outcome) error {
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var hasOutcome int
	err := s.db.QueryRow(
		`SELECT has_outcome FROM decision_index WHERE decision_key = ?`, decisionKey,
	).Scan(&hasOutcome)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrUnknownKey, decisionKey)
	}
	if err != nil {
		return fmt.Errorf("check key: %w", err)
	}
	if hasOutcome != 0 {
		return fmt.Errorf("%w: %s", ErrOutcomeAlreadyRecorded, decisionKey)
	}

	e := logEntry{Kind: kindOutcomePatch, DecisionKey: decisionKey, Outcome: &outcome}
	if err := s.appendEntry(e); err != nil {
		return err
	}

	_, err = s.db.Exec(
		`UPDATE decision_index SET has_outcome = 1, outcome_recorded_at = ?
		 WHERE decision_key = ?`,
		outcome.RecordedAt.Format(time.RFC3339Nano), decisionKey,
	)
	if err != nil {
		return fmt.Errorf("index outcome %s: %w", decisionKey, err)
	}
	return nil
}

// #endregion attach-outcome

// #region load-all

// LoadAll reconstructs full records by folding the log in append order.
// Outcome patches become visible here without mutating history. Safe to
// call concurrently with a writer; the caller may or may not observe an
// in-flight append.
func (s *Store) LoadAll() ([]decision.DecisionRecord, error) {
	records, skipped, err := foldLogFile(s.logPath)
	if err != nil {
		return nil, err
	}
	s.skipped.Store(int64(skipped))
	if skipped > 0 {
		log.Printf("[STORE] skipped %d corrupt log unit(s) during load", skipped)
	}
	return records, nil
}

// CorruptSkipped reports how many malformed log units the most recent
// load ignored.
func (s *Store) CorruptSkipped() int {
	return int(s.skipped.Load())
}

// #endregion load-all

// #region stats

// Stats summarizes the store from a full scan.
type Stats struct {
	TotalDecisions       int     `json:"total_decisions"`
	WithOutcome          int     `json:"with_outcome"`
	SuccessRate          float64 `json:"success_rate"`
	HighRegretCount      int     `json:"high_regret_count"`
	SecondaryDamageCount int     `json:"secondary_damage_count"`
}

// Stats computes store statistics by folding the full log.
func (s *Store) Stats() (Stats, error) {
	records, err := s.LoadAll()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{TotalDecisions: len(records)}
	successes := 0
	for _, rec := range records {
		if rec.Outcome == nil {
			continue
		}
		st.WithOutcome++
		if rec.Outcome.Success {
			successes++
		}
		if rec.Outcome.HighRegret() {
			st.HighRegretCount++
		}
		if rec.Outcome.SecondaryDamage {
			st.SecondaryDamageCount++
		}
	}
	if st.WithOutcome > 0 {
		st.SuccessRate = float64(successes) / float64(st.WithOutcome)
	}
	return st, nil
}

// #endregion stats

// #region reconcile

// reconcile re-derives index rows from the log. Insert-or-ignore keeps
// existing rows; rows the log knows about but the index lost (crash
// between log sync and index write) are restored.
func (s *Store) reconcile() error {
	records, _, err := foldLogFile(s.logPath)
	if err != nil {
		return err
	}

	repaired := 0
	for _, rec := range records {
		res, err := s.db.Exec(
			`INSERT OR IGNORE INTO decision_index (decision_key, decision_id, recorded_at, has_outcome)
			 VALUES (?, ?, ?, 0)`,
			rec.DecisionKey, rec.DecisionID, rec.Timestamp.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", rec.DecisionKey, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			repaired++
		}
		if rec.Outcome != nil {
			_, err := s.db.Exec(
				`UPDATE decision_index SET has_outcome = 1, outcome_recorded_at = ?
				 WHERE decision_key = ? AND has_outcome = 0`,
				rec.Outcome.RecordedAt.Format(time.RFC3339Nano), rec.DecisionKey,
			)
			if err != nil {
				return fmt.Errorf("reconcile outcome %s: %w", rec.DecisionKey, err)
			}
		}
	}
	if repaired > 0 {
		log.Printf("[STORE] reconciled %d index row(s) from log", repaired)
	}
	return nil
}

// #endregion reconcile
