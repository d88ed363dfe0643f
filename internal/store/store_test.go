package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/decisionloop/feedback-controller/internal/decision"
	"github.com/google/go-cmp/cmp"
)

func tempStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	logPath := filepath.Join(dir, "feedback_log.jsonl")
	dbPath := filepath.Join(dir, "feedback_index.db")
	s, err := NewStore(logPath, dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, logPath, dbPath
}

func sampleRecord(key string) decision.DecisionRecord {
	return decision.DecisionRecord{
		DecisionKey: key,
		DecisionID:  "migrate-db",
		UserInput:   "migrate the primary database",
		Features: decision.Features{
			"situation": {"risk": 0.6, "irreversibility": 0.4},
		},
	}
}

func TestAppendAndLoadAll(t *testing.T) {
	s, _, _ := tempStore(t)

	key, err := s.Append(sampleRecord(""))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if key == "" {
		t.Fatal("expected derived key")
	}

	records, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].DecisionKey != key {
		t.Fatalf("expected key %s, got %s", key, records[0].DecisionKey)
	}
	if records[0].Outcome != nil {
		t.Fatal("outcome must be unset before AttachOutcome")
	}
	if records[0].Timestamp.IsZero() {
		t.Fatal("expected timestamp set on append")
	}
}

func TestAppendDuplicateKey(t *testing.T) {
	s, _, _ := tempStore(t)

	if _, err := s.Append(sampleRecord("fixed-key-1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	_, err := s.Append(sampleRecord("fixed-key-1"))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestAttachOutcomeWriteOnce(t *testing.T) {
	s, _, _ := tempStore(t)

	err := s.AttachOutcome("no-such-key", decision.Outcome{Success: true})
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}

	key, err := s.Append(sampleRecord(""))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	first := decision.Outcome{Success: false, RegretScore: 0.8, RecoveryTimeDays: 30, SecondaryDamage: true, Notes: "rollback required"}
	if err := s.AttachOutcome(key, first); err != nil {
		t.Fatalf("AttachOutcome: %v", err)
	}

	second := decision.Outcome{Success: true, Notes: "revised"}
	err = s.AttachOutcome(key, second)
	if !errors.Is(err, ErrOutcomeAlreadyRecorded) {
		t.Fatalf("expected ErrOutcomeAlreadyRecorded, got %v", err)
	}

	records, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if records[0].Outcome == nil {
		t.Fatal("expected outcome attached")
	}
	if records[0].Outcome.Notes != "rollback required" {
		t.Fatalf("stored outcome changed by rejected second attach: %+v", records[0].Outcome)
	}
	if records[0].Outcome.Success {
		t.Fatal("stored outcome changed by rejected second attach")
	}
}

func TestLoadAllIdempotent(t *testing.T) {
	s, _, _ := tempStore(t)

	k1, _ := s.Append(sampleRecord(""))
	k2, _ := s.Append(sampleRecord(""))
	if err := s.AttachOutcome(k1, decision.Outcome{Success: true, RegretScore: 0.1}); err != nil {
		t.Fatalf("AttachOutcome: %v", err)
	}
	_ = k2

	a, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	b, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("consecutive loads differ (-first +second):\n%s", diff)
	}
}

func TestTruncatedTrailingEntry(t *testing.T) {
	s, logPath, _ := tempStore(t)

	k1, _ := s.Append(sampleRecord(""))
	k2, _ := s.Append(sampleRecord(""))

	// Simulate a crash mid-append: a partial unit with no newline.
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString(`{"kind":"decision","record":{"decision_k`); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	f.Close()

	records, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll must tolerate a truncated trailing unit: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 well-formed records, got %d", len(records))
	}
	if records[0].DecisionKey != k1 || records[1].DecisionKey != k2 {
		t.Fatalf("unexpected keys %s, %s", records[0].DecisionKey, records[1].DecisionKey)
	}
	if s.CorruptSkipped() != 1 {
		t.Fatalf("expected 1 skipped unit, got %d", s.CorruptSkipped())
	}
}

func TestStats(t *testing.T) {
	s, _, _ := tempStore(t)

	k1, _ := s.Append(sampleRecord(""))
	k2, _ := s.Append(sampleRecord(""))
	k3, _ := s.Append(sampleRecord(""))
	_, _ = s.Append(sampleRecord("")) // never gets an outcome

	s.AttachOutcome(k1, decision.Outcome{Success: true, RegretScore: 0.1})
	s.AttachOutcome(k2, decision.Outcome{Success: false, RegretScore: 0.9, SecondaryDamage: true})
	s.AttachOutcome(k3, decision.Outcome{Success: true, RegretScore: 0.6})

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.TotalDecisions != 4 {
		t.Errorf("TotalDecisions = %d", st.TotalDecisions)
	}
	if st.WithOutcome != 3 {
		t.Errorf("WithOutcome = %d", st.WithOutcome)
	}
	if want := 2.0 / 3.0; st.SuccessRate != want {
		t.Errorf("SuccessRate = %v, want %v", st.SuccessRate, want)
	}
	if st.HighRegretCount != 2 {
		t.Errorf("HighRegretCount = %d", st.HighRegretCount)
	}
	if st.SecondaryDamageCount != 1 {
		t.Errorf("SecondaryDamageCount = %d", st.SecondaryDamageCount)
	}
}

func TestReconcileRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "feedback_log.jsonl")
	dbPath := filepath.Join(dir, "feedback_index.db")

	s, err := NewStore(logPath, dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	k1, _ := s.Append(sampleRecord(""))
	k2, _ := s.Append(sampleRecord(""))
	if err := s.AttachOutcome(k1, decision.Outcome{Success: true, RecordedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("AttachOutcome: %v", err)
	}
	s.Close()

	// Lose the index; the log is the source of truth.
	if err := os.Remove(dbPath); err != nil {
		t.Fatalf("remove index: %v", err)
	}

	s2, err := NewStore(logPath, dbPath)
	if err != nil {
		t.Fatalf("NewStore after index loss: %v", err)
	}
	defer s2.Close()

	err = s2.AttachOutcome(k1, decision.Outcome{Success: false})
	if !errors.Is(err, ErrOutcomeAlreadyRecorded) {
		t.Fatalf("reconciled index must remember k1's outcome, got %v", err)
	}
	if err := s2.AttachOutcome(k2, decision.Outcome{Success: true}); err != nil {
		t.Fatalf("reconciled index must allow k2's first outcome: %v", err)
	}
	_, err = s2.Append(sampleRecord(k1))
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("reconciled index must reject duplicate key, got %v", err)
	}
}
