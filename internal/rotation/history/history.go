// Package history keeps a local record of rotation runs.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Run outcomes
const (
	StatusSuccess = "success"
	StatusGuard   = "guard"
	StatusFailed  = "failed"
)

// fileLayout sorts lexically in time order
const fileLayout = "20060102T150405.000000000Z"

// Entry is one rotation run
type Entry struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	User       string        `json:"user"`
	Repository string        `json:"repository,omitempty"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`

	KeyCount          int      `json:"key_count"`
	Deactivated       string   `json:"deactivated,omitempty"`
	DeactivationError string   `json:"deactivation_error,omitempty"`
	NewKeyID          string   `json:"new_key_id,omitempty"`
	Secrets           []string `json:"secrets,omitempty"`
}

// FileStore keeps each entry in its own JSON file under dir/<user>/
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Save writes entry, assigning an ID when it has none
func (fs *FileStore) Save(entry *Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	userDir := filepath.Join(fs.dir, sanitizeFilename(entry.User))
	if err := os.MkdirAll(userDir, 0o700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	stamp := entry.Timestamp.UTC().Format(fileLayout)
	if entry.ID == "" {
		entry.ID = stamp + "-" + sanitizeFilename(entry.User)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	filename := filepath.Join(userDir, stamp+".json")
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// List returns entries newest first. An empty user lists every user; a
// limit <= 0 returns everything.
func (fs *FileStore) List(user string, limit int) ([]Entry, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var users []string
	if user != "" {
		users = []string{sanitizeFilename(user)}
	} else {
		dirs, err := os.ReadDir(fs.dir)
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read history directory: %w", err)
		}
		for _, d := range dirs {
			if d.IsDir() {
				users = append(users, d.Name())
			}
		}
	}

	entries := []Entry{}
	for _, u := range users {
		userEntries, err := fs.readUser(u)
		if err != nil {
			return nil, err
		}
		entries = append(entries, userEntries...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (fs *FileStore) readUser(user string) ([]Entry, error) {
	userDir := filepath.Join(fs.dir, user)

	files, err := os.ReadDir(userDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	var entries []Entry
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(userDir, file.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Prune deletes entries recorded before now-olderThan and returns how many
// were removed.
func (fs *FileStore) Prune(olderThan time.Duration, now time.Time) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	cutoff := now.Add(-olderThan)
	removed := 0

	err := filepath.WalkDir(fs.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		stamp := strings.TrimSuffix(d.Name(), ".json")
		ts, err := time.Parse(fileLayout, stamp)
		if err != nil || !ts.Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		removed++
		return nil
	})
	return removed, err
}

// sanitizeFilename replaces characters that might be problematic in filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "-",
		"<", "-",
		">", "-",
		"|", "-",
		" ", "_",
	)
	return replacer.Replace(name)
}
