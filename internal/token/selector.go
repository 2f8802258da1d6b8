// Package token owns the runtime account pool: loading accounts from disk,
// applying the scheduling configuration, and picking an account per request.
package token

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/antigravity-tools/agproxy/internal/account"
)

// Selector implements the account selection strategies: priority, weighted
// load balancing, round robin, and sticky sessions.
type Selector struct {
	mu           sync.Mutex
	cursors      map[string]int
	stickyRoutes map[string]string
	strategy     string
}

// NewSelector creates a selector with the given default strategy.
func NewSelector(strategy string) *Selector {
	if strategy == "" {
		strategy = "priority"
	}
	return &Selector{
		cursors:      make(map[string]int),
		stickyRoutes: make(map[string]string),
		strategy:     strategy,
	}
}

// SetStrategy updates the selection strategy at runtime.
func (s *Selector) SetStrategy(strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strategy != "" {
		s.strategy = strategy
	}
}

// Pick selects an account for the given model. sessionID feeds the sticky
// strategy; it may be empty.
func (s *Selector) Pick(model, sessionID string, candidates []*account.Account) (*account.Account, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no account candidates")
	}

	s.mu.Lock()
	strategy := s.strategy
	s.mu.Unlock()

	switch strategy {
	case "load-balance", "weight":
		return s.pickWeighted(candidates)
	case "round-robin":
		return s.pickRoundRobin(model, candidates)
	case "sticky":
		return s.pickSticky(model, sessionID, candidates)
	default:
		return s.pickPriority(model, candidates)
	}
}

// pickPriority selects the candidate with the lowest Priority value and
// round-robins among ties.
func (s *Selector) pickPriority(model string, candidates []*account.Account) (*account.Account, error) {
	sorted := append([]*account.Account(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})

	best := sorted[0].Priority
	top := sorted[:0]
	for _, c := range sorted {
		if c.Priority == best {
			top = append(top, c)
		} else {
			break
		}
	}

	if len(top) == 1 {
		return top[0], nil
	}
	return s.pickRoundRobin(model, top)
}

// pickWeighted selects a candidate proportionally to its Weight.
func (s *Selector) pickWeighted(candidates []*account.Account) (*account.Account, error) {
	total := 0
	for _, c := range candidates {
		w := c.Weight
		if w <= 0 {
			w = 1
		}
		total += w
	}

	r := rand.Intn(total)
	current := 0
	for _, c := range candidates {
		w := c.Weight
		if w <= 0 {
			w = 1
		}
		current += w
		if r < current {
			return c, nil
		}
	}
	return candidates[0], nil
}

// pickRoundRobin rotates through candidates evenly per model.
func (s *Selector) pickRoundRobin(model string, candidates []*account.Account) (*account.Account, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}

	sorted := append([]*account.Account(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.cursors[model]
	if index >= 2_147_483_640 {
		index = 0
	}
	s.cursors[model] = index + 1

	return sorted[index%len(sorted)], nil
}

// pickSticky binds a session to one account for consistent routing, falling
// back to priority selection when there is no session or the binding is gone.
func (s *Selector) pickSticky(model, sessionID string, candidates []*account.Account) (*account.Account, error) {
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if sessionID == "" {
		return s.pickPriority(model, candidates)
	}

	key := model + ":" + sessionID

	s.mu.Lock()
	boundID, exists := s.stickyRoutes[key]
	s.mu.Unlock()

	if exists {
		for _, c := range candidates {
			if c.ID == boundID {
				return c, nil
			}
		}
		// Bound account is gone; rebind below.
	}

	selected, err := s.pickPriority(model, candidates)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.stickyRoutes[key] = selected.ID
	s.mu.Unlock()

	return selected, nil
}
