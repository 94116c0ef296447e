// Package history records which threads each account replied to per day, so
// daily quotas survive restarts.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// forumZone is the timezone the forum's day boundary follows.
var forumZone = time.FixedZone("UTC+8", 8*60*60)

// Day returns the history key for t.
func Day(t time.Time) string {
	return t.In(forumZone).Format("2006-01-02")
}

// Entry is one account's activity on one day.
type Entry struct {
	Count   int      `toml:"count"`
	Threads []string `toml:"threads"`
}

type document struct {
	Days map[string]map[string]Entry `toml:"days"`
}

// Store is a TOML file of per-day, per-account entries. A missing or
// unreadable file is treated as empty history.
type Store struct {
	path string

	mu   sync.Mutex
	days map[string]map[string]Entry
}

// Open loads the store at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history path is required")
	}
	s := &Store{path: path, days: map[string]map[string]Entry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read history %s: %w", path, err)
	}
	var doc document
	if err := toml.Unmarshal(data, &doc); err == nil && doc.Days != nil {
		s.days = doc.Days
	}
	return s, nil
}

// Count returns how many replies account posted on day.
func (s *Store) Count(account, day string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.days[day][account].Count
}

// Threads returns the thread URLs account replied to on day.
func (s *Store) Threads(account, day string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.days[day][account].Threads...)
}

// RecordSuccess adds a reply and persists the file.
func (s *Store) RecordSuccess(account, day, threadURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.days[day]
	if accounts == nil {
		accounts = map[string]Entry{}
		s.days[day] = accounts
	}
	entry := accounts[account]
	entry.Count++
	entry.Threads = append(entry.Threads, threadURL)
	accounts[account] = entry

	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := toml.Marshal(document{Days: s.days})
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
