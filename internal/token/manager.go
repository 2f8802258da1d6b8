package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/antigravity-tools/agproxy/internal/account"
	"github.com/antigravity-tools/agproxy/internal/config"
	log "github.com/sirupsen/logrus"
)

// failureCooldown is how long an account sits out after an upstream failure.
const failureCooldown = 60 * time.Second

// Manager owns the runtime view of the account pool for one or more proxy
// instances. Accounts are loaded from the store at start and selected per
// request according to the published scheduling configuration.
type Manager struct {
	store    *account.Store
	selector *Selector

	mu             sync.RWMutex
	accounts       []*account.Account
	cooldowns      map[string]time.Time
	disableCooling bool
}

// NewManager creates a manager rooted at the data directory.
func NewManager(dataDir string) *Manager {
	return &Manager{
		store:     account.NewStore(dataDir),
		selector:  NewSelector(""),
		cooldowns: make(map[string]time.Time),
	}
}

// UpdateSchedulingConfig publishes the pool scheduling configuration. Called
// on every service start so config edits take effect on restart. Only the
// selection strategy is applied; Retry and Fallback are not used.
func (m *Manager) UpdateSchedulingConfig(cfg config.SchedulingConfig) {
	m.selector.SetStrategy(cfg.Strategy)
}

// SetDisableCooling turns off post-failure cool-down (experimental flag).
func (m *Manager) SetDisableCooling(disabled bool) {
	m.mu.Lock()
	m.disableCooling = disabled
	m.mu.Unlock()
}

// LoadAccounts reads the pool from disk and returns the active count.
func (m *Manager) LoadAccounts(ctx context.Context) (int, error) {
	list, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load accounts: %w", err)
	}

	active := make([]*account.Account, 0, len(list))
	for _, acc := range list {
		if !acc.Disabled {
			active = append(active, acc)
		}
	}

	m.mu.Lock()
	m.accounts = active
	m.mu.Unlock()

	log.Infof("loaded %d accounts (%d active)", len(list), len(active))
	return len(active), nil
}

// Len returns the number of active accounts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}

// Store exposes the underlying account store for the CLI shells.
func (m *Manager) Store() *account.Store {
	return m.store
}

// Pick selects an account for one upstream attempt, skipping accounts that
// are cooling down after failures. When every account is cooling down the
// pool is drained and an error is returned.
func (m *Manager) Pick(ctx context.Context, model, sessionID string) (*account.Account, error) {
	m.mu.RLock()
	now := time.Now()
	candidates := make([]*account.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		if until, cooling := m.cooldowns[acc.ID]; cooling && now.Before(until) && !m.disableCooling {
			continue
		}
		candidates = append(candidates, acc)
	}
	m.mu.RUnlock()

	if len(candidates) == 0 {
		return nil, fmt.Errorf("no account available")
	}
	return m.selector.Pick(model, sessionID, candidates)
}

// MarkFailure puts the account into cool-down.
func (m *Manager) MarkFailure(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disableCooling {
		return
	}
	m.cooldowns[id] = time.Now().Add(failureCooldown)
	log.Debugf("account %s cooling down until %s", id, m.cooldowns[id].Format(time.RFC3339))
}

// MarkSuccess clears any cool-down for the account.
func (m *Manager) MarkSuccess(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cooldowns, id)
}
