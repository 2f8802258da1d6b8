// Package account manages the on-disk pool of end-user accounts the proxy
// dispatches with. Each account is one JSON file under <data-dir>/accounts.
package account

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// envDataDir overrides the platform data directory when set.
const envDataDir = "AGPROXY_DATA_DIR"

// TokenData holds the upstream credential blob for one account. Refresh is
// handled by the credential module, not here.
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Quota mirrors the subscription information reported by the backend.
type Quota struct {
	SubscriptionTier string `json:"subscription_tier,omitempty"`
}

// Account is one pooled end-user account.
type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Label     string    `json:"label,omitempty"`
	Disabled  bool      `json:"disabled,omitempty"`

	// Priority orders selection under the priority strategy (lower wins).
	Priority int `json:"priority,omitempty"`
	// Weight biases selection under the load-balance strategy.
	Weight int `json:"weight,omitempty"`

	Token     TokenData `json:"token"`
	Quota     *Quota    `json:"quota,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Tier returns the subscription tier, defaulting to Free.
func (a *Account) Tier() string {
	if a.Quota != nil && a.Quota.SubscriptionTier != "" {
		return a.Quota.SubscriptionTier
	}
	return "Free"
}

// DataDir resolves the application data directory, creating it if needed.
func DataDir() (string, error) {
	if dir := os.Getenv(envDataDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("data directory unavailable: %w", err)
		}
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("data directory unavailable: %w", err)
	}
	dir := filepath.Join(base, "agproxy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("data directory unavailable: %w", err)
	}
	return dir, nil
}

// AccountsDir resolves and creates the accounts sub-directory.
func AccountsDir() (string, error) {
	base, err := DataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "accounts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("data directory unavailable: %w", err)
	}
	return dir, nil
}
