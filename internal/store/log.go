package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/decisionloop/feedback-controller/internal/decision"
)

// #region log-entry

// Entry kinds. The log is an ordered sequence of self-describing units:
// a decision entry carries the full record, an outcome-patch overlays
// an outcome onto an earlier decision. History is never rewritten.
const (
	kindDecision     = "decision"
	kindOutcomePatch = "outcome-patch"
)

type logEntry struct {
	Kind        string                   `json:"kind"`
	Record      *decision.DecisionRecord `json:"record,omitempty"`
	DecisionKey string                   `json:"decision_key,omitempty"`
	Outcome     *decision.Outcome        `json:"outcome,omitempty"`
}

// #endregion log-entry

// #region append-entry

// appendEntry writes one entry as a single line and syncs it to disk.
// The sync happens before the caller touches the index, so the index
// can lag the log after a crash but never lead it.
func (s *Store) appendEntry(e logEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.logFile.Write(data); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	if err := s.logFile.Sync(); err != nil {
		return fmt.Errorf("sync log: %w", err)
	}
	return nil
}

// #endregion append-entry

// #region fold

// foldLog replays the log in append order, overlaying outcome patches
// onto their decision entries. Malformed units (including a truncated
// trailing write) are skipped and counted, never fatal: losing one
// historical unit must not block reconstruction of the rest.
func foldLog(r io.Reader) (records []decision.DecisionRecord, skipped int) {
	byKey := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e logEntry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		switch e.Kind {
		case kindDecision:
			if e.Record == nil || e.Record.DecisionKey == "" {
				skipped++
				continue
			}
			if _, dup := byKey[e.Record.DecisionKey]; dup {
				skipped++
				continue
			}
			byKey[e.Record.DecisionKey] = len(records)
			records = append(records, *e.Record)
		case kindOutcomePatch:
			idx, ok := byKey[e.DecisionKey]
			if !ok || e.Outcome == nil {
				skipped++
				continue
			}
			// Write-once overlay: a second patch for the same key is
			// ignored, the first one wins.
			if records[idx].Outcome == nil {
				o := *e.Outcome
				records[idx].Outcome = &o
			}
		default:
			skipped++
		}
	}
	// A read error mid-stream leaves us with the well-formed prefix,
	// which is exactly the truncation contract.
	return records, skipped
}

// foldLogFile opens and folds the log at path. A missing file is an
// empty log.
func foldLogFile(path string) ([]decision.DecisionRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()
	records, skipped := foldLog(f)
	return records, skipped, nil
}

// #endregion fold
