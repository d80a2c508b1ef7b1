// Package results persists completed backtest run results as JSON files,
// one record per run, with an in-memory index for listing.
package results

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tradesim/internal/domain"
)

// Record pairs a run request with its result so a saved run can be
// reproduced later.
type Record struct {
	ID      string            `json:"id"`
	SavedAt time.Time         `json:"saved_at"`
	Request domain.RunRequest `json:"request"`
	Result  *domain.RunResult `json:"result"`
}

// Store writes run records under a root directory, one file per run.
type Store struct {
	mu    sync.Mutex
	dir   string
	log   *slog.Logger
	paths map[string]string // run id -> file path
}

// NewStore creates a Store rooted at dir, indexing any existing records.
func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results dir: %w", err)
	}
	s := &Store{
		dir:   dir,
		log:   log,
		paths: make(map[string]string),
	}
	s.loadIndex()
	return s, nil
}

// Save persists a run record and returns its ID. The ID encodes strategy,
// engine, and save time so listings sort chronologically per strategy.
func (s *Store) Save(req domain.RunRequest, res *domain.RunResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	id := fmt.Sprintf("%s-%s-%s", req.StrategyName, res.Engine, now.Format("20060102T150405.000000000"))
	rec := Record{
		ID:      id,
		SavedAt: now,
		Request: req,
		Result:  res,
	}

	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding result record: %w", err)
	}

	path := filepath.Join(s.dir, id+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("writing result record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("committing result record: %w", err)
	}
	s.paths[id] = path
	s.log.Info("saved run result", "id", id, "engine", res.Engine)
	return id, nil
}

// Load reads a previously saved record by ID.
func (s *Store) Load(id string) (*Record, error) {
	s.mu.Lock()
	path, ok := s.paths[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown run %s", id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding result record %s: %w", id, err)
	}
	return &rec, nil
}

// List returns all saved run IDs, sorted.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.paths))
	for id := range s.paths {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// loadIndex scans the root directory for existing records.
func (s *Store) loadIndex() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("scanning results dir", "error", err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		s.paths[id] = filepath.Join(s.dir, name)
	}
	if len(s.paths) > 0 {
		s.log.Info("indexed existing run results", "count", len(s.paths))
	}
}
