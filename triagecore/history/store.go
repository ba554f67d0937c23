// Package history provides the persistent, bounded interaction ledger keyed
// by correspondent address.
//
// The ledger is a single pretty-printed JSON object on disk mapping each
// correspondent to their most recent interactions (FIFO-trimmed to a bound).
// The store is self-healing: malformed content is replaced with an empty
// ledger on load, and append rebuilds the file around the new record rather
// than failing. Operations within one process are serialized by a mutex; there
// is deliberately no cross-process file locking, so concurrent processes are
// last-writer-wins on the whole file.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/observability"
	"github.com/sonukumar047/email-assistant/triagecore/state"
)

// ledger is the on-disk shape: correspondent -> chronological records.
type ledger map[string][]state.InteractionRecord

// Store manages the persistent interaction ledger.
type Store struct {
	path       string
	maxHistory int
	logger     logging.Logger

	mu sync.Mutex
}

// NewStore creates a Store for the ledger file at path, keeping at most
// maxHistory records per correspondent. The file and its directory are
// created lazily on first use.
func NewStore(path string, maxHistory int, logger logging.Logger) *Store {
	return &Store{
		path:       path,
		maxHistory: maxHistory,
		logger:     logger.Bind("component", "history"),
	}
}

// Path returns the ledger file location.
func (s *Store) Path() string { return s.path }

// ensure creates the containing directory and an empty ledger on first use.
// Called with the mutex held.
func (s *Store) ensure() {
	if _, err := os.Stat(s.path); err == nil || !os.IsNotExist(err) {
		return
	}
	if err := s.write(ledger{}); err != nil {
		s.logger.Error("ledger_init_failed", "error", err.Error())
		return
	}
	s.logger.Info("ledger_initialized", "path", s.path)
}

// Load returns the interaction history for a correspondent, oldest first.
// Absent key, absent file, empty file, and malformed content all yield an
// empty slice; malformed content additionally reinitializes the ledger.
func (s *Store) Load(key string) []state.InteractionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(key)
}

func (s *Store) loadLocked(key string) []state.InteractionRecord {
	s.ensure()
	data, err := s.read()
	if err != nil {
		s.recover("load", err)
		return []state.InteractionRecord{}
	}

	records := data[key]
	if records == nil {
		records = []state.InteractionRecord{}
	}
	observability.RecordLedgerOp("load", "success")
	s.logger.Debug("ledger_loaded", "key", key, "records", len(records))
	return records
}

// Append loads the ledger, appends record under key, trims the key's history
// to the configured bound (oldest evicted first), and rewrites the whole file.
// If the existing content is malformed the prior ledger is discarded and the
// file is rebuilt holding only this record.
func (s *Store) Append(key string, record state.InteractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure()
	data, err := s.read()
	if err != nil {
		// Corrupt at append time: start fresh with just this interaction.
		s.recover("append", err)
		data = ledger{}
	}

	data[key] = append(data[key], record)
	if len(data[key]) > s.maxHistory {
		data[key] = data[key][len(data[key])-s.maxHistory:]
	}

	if err := s.write(data); err != nil {
		observability.RecordLedgerOp("append", "error")
		return err
	}

	observability.RecordLedgerOp("append", "success")
	s.logger.Info("interaction_saved", "key", key, "records", len(data[key]))
	return nil
}

// Count returns the number of stored interactions for a correspondent.
func (s *Store) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.loadLocked(key))
}

// Clear removes the entry for a correspondent. Clearing an absent key is a no-op.
func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		s.recover("clear", err)
		return nil
	}

	if _, exists := data[key]; !exists {
		return nil
	}
	delete(data, key)

	if err := s.write(data); err != nil {
		observability.RecordLedgerOp("clear", "error")
		return err
	}
	observability.RecordLedgerOp("clear", "success")
	s.logger.Info("ledger_cleared", "key", key)
	return nil
}

// ClearAll replaces the entire ledger with an empty mapping.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(ledger{}); err != nil {
		observability.RecordLedgerOp("clear", "error")
		return err
	}
	observability.RecordLedgerOp("clear", "success")
	s.logger.Info("ledger_cleared", "key", "all")
	return nil
}

// read parses the ledger file. A missing or empty file yields an empty ledger;
// malformed content yields a PersistenceError for the caller to recover from.
func (s *Store) read() (ledger, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return ledger{}, nil
	}
	if err != nil {
		return nil, &PersistenceError{Path: s.path, Message: "read failed", Cause: err}
	}
	if len(raw) == 0 {
		return ledger{}, nil
	}

	var data ledger
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &PersistenceError{Path: s.path, Message: "malformed content", Cause: err}
	}
	if data == nil {
		data = ledger{}
	}
	return data, nil
}

// write persists the full ledger, pretty-printed, creating the directory if needed.
func (s *Store) write(data ledger) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &PersistenceError{Path: s.path, Message: "create directory failed", Cause: err}
		}
	}

	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return &PersistenceError{Path: s.path, Message: "encode failed", Cause: err}
	}
	if err := os.WriteFile(s.path, encoded, 0o644); err != nil {
		return &PersistenceError{Path: s.path, Message: "write failed", Cause: err}
	}
	return nil
}

// recover reinitializes the ledger after malformed content was detected.
// Self-healing side effect: subsequent reads see a valid empty ledger.
func (s *Store) recover(op string, cause error) {
	observability.RecordLedgerOp(op, "recovered")
	s.logger.Warn("ledger_corrupt_reinitializing", "op", op, "error", cause.Error())
	if err := s.write(ledger{}); err != nil {
		s.logger.Error("ledger_reinit_failed", "error", err.Error())
	}
}
