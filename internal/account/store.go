package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

const currentFile = "current_account"

// Store persists accounts as individual JSON files under a base directory.
type Store struct {
	mu      sync.RWMutex
	baseDir string
}

// NewStore creates a store rooted at the data directory. The accounts
// sub-directory is created lazily on first write.
func NewStore(dataDir string) *Store {
	return &Store{baseDir: dataDir}
}

func (s *Store) accountsDir() string {
	return filepath.Join(s.baseDir, "accounts")
}

func (s *Store) accountPath(id string) string {
	return filepath.Join(s.accountsDir(), id+".json")
}

// List returns all accounts sorted by id. A missing accounts directory is an
// empty pool, not an error.
func (s *Store) List(ctx context.Context) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.accountsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to enumerate accounts: %w", err)
	}

	var list []*Account
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.accountsDir(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate accounts: %w", err)
		}
		var acc Account
		if err := json.Unmarshal(data, &acc); err != nil {
			log.Warnf("skipping malformed account file %s: %v", entry.Name(), err)
			continue
		}
		if acc.ID == "" {
			acc.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		list = append(list, &acc)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// Save writes one account file.
func (s *Store) Save(ctx context.Context, acc *Account) error {
	if acc == nil {
		return fmt.Errorf("account is nil")
	}
	if acc.ID == "" {
		return fmt.Errorf("account id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.accountsDir(), 0o700); err != nil {
		return fmt.Errorf("failed to create accounts directory: %w", err)
	}
	data, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := os.WriteFile(s.accountPath(acc.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write account file: %w", err)
	}
	return nil
}

// Delete removes the account file and clears the current marker if it
// pointed at the deleted account.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.accountPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if current, _ := s.readCurrent(); current == id {
		_ = os.Remove(filepath.Join(s.baseDir, currentFile))
	}
	return nil
}

// SetCurrent marks the active account for the CLI shells.
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(filepath.Join(s.baseDir, currentFile), []byte(id), 0o600); err != nil {
		return fmt.Errorf("failed to write current account marker: %w", err)
	}
	return nil
}

// Current returns the marked account id, or empty when none is marked.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, _ := s.readCurrent()
	return id
}

func (s *Store) readCurrent() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, currentFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Find locates an account by exact id or email substring.
func (s *Store) Find(ctx context.Context, idOrEmail string) (*Account, error) {
	accounts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if acc.ID == idOrEmail {
			return acc, nil
		}
	}
	for _, acc := range accounts {
		if idOrEmail != "" && strings.Contains(acc.Email, idOrEmail) {
			return acc, nil
		}
	}
	return nil, fmt.Errorf("account not found: %s", idOrEmail)
}
