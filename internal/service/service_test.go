package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/antigravity-tools/agproxy/internal/account"
	"github.com/antigravity-tools/agproxy/internal/config"
)

// testConfig returns a loopback config on an ephemeral port.
func testConfig() config.ProxyConfig {
	cfg := config.DefaultProxyConfig()
	cfg.Port = 0
	cfg.EnableLogging = true
	return cfg
}

// seedAccount installs one active account under the test data dir.
func seedAccount(t *testing.T, dataDir string) {
	t.Helper()
	store := account.NewStore(dataDir)
	if err := store.Save(context.Background(), &account.Account{
		ID:    "test-account",
		Email: "test@example.com",
		Token: account.TokenData{AccessToken: "tok"},
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func setupDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AGPROXY_DATA_DIR", dir)
	return dir
}

func TestStartStop_RoundTrip(t *testing.T) {
	dir := setupDataDir(t)
	seedAccount(t, dir)

	svc := New()
	ctx := context.Background()

	status, err := svc.Start(ctx, testConfig())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !status.Running {
		t.Error("status.Running = false after Start")
	}
	if status.Port == 0 {
		t.Error("status.Port = 0")
	}
	if status.BaseURL == "" {
		t.Error("status.BaseURL empty")
	}
	if status.ActiveAccounts != 1 {
		t.Errorf("ActiveAccounts = %d, want 1", status.ActiveAccounts)
	}

	got := svc.GetStatus()
	if !got.Running || got.Port != status.Port {
		t.Errorf("GetStatus = %+v, want running on port %d", got, status.Port)
	}

	if err = svc.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	got = svc.GetStatus()
	if got.Running {
		t.Error("GetStatus running after Stop")
	}
	if got.Port != 0 || got.BaseURL != "" || got.ActiveAccounts != 0 {
		t.Errorf("stopped status not defaulted: %+v", got)
	}
}

func TestStart_FailsWhenRunning(t *testing.T) {
	dir := setupDataDir(t)
	seedAccount(t, dir)

	svc := New()
	ctx := context.Background()

	if _, err := svc.Start(ctx, testConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		_ = svc.Stop(ctx)
	}()

	if _, err := svc.Start(ctx, testConfig()); !errors.Is(err, ErrRunningAlready) {
		t.Errorf("second Start error = %v, want ErrRunningAlready", err)
	}
}

func TestStop_FailsWhenStopped(t *testing.T) {
	setupDataDir(t)
	svc := New()
	if err := svc.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop error = %v, want ErrNotRunning", err)
	}
}

func TestStart_NoAccounts(t *testing.T) {
	setupDataDir(t)
	svc := New()

	_, err := svc.Start(context.Background(), testConfig())
	if !errors.Is(err, ErrNoAccounts) {
		t.Errorf("Start error = %v, want ErrNoAccounts", err)
	}
	if svc.GetStatus().Running {
		t.Error("service running after failed start")
	}
}

func TestStart_NoAccountsRelaxedByZai(t *testing.T) {
	setupDataDir(t)
	svc := New()
	ctx := context.Background()

	cfg := testConfig()
	cfg.Zai = config.ZaiConfig{Enabled: true, DispatchMode: config.ZaiDispatchFallback, APIKey: "zk"}

	status, err := svc.Start(ctx, cfg)
	if err != nil {
		t.Fatalf("Start with zai dispatch failed: %v", err)
	}
	if status.ActiveAccounts != 0 {
		t.Errorf("ActiveAccounts = %d, want 0", status.ActiveAccounts)
	}
	_ = svc.Stop(ctx)
}

func TestStart_PersistsConfig(t *testing.T) {
	dir := setupDataDir(t)
	seedAccount(t, dir)

	svc := New()
	ctx := context.Background()

	cfg := testConfig()
	cfg.CustomMapping = map[string]string{"gpt-4": "gemini-3-pro-high"}

	if _, err := svc.Start(ctx, cfg); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		_ = svc.Stop(ctx)
	}()

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not persisted: %v", err)
	}
	loaded, err := config.LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig failed: %v", err)
	}
	if loaded.Proxy.CustomMapping["gpt-4"] != "gemini-3-pro-high" {
		t.Errorf("persisted mapping = %v", loaded.Proxy.CustomMapping)
	}
}

func TestConcurrentStart_SingleWinner(t *testing.T) {
	dir := setupDataDir(t)
	seedAccount(t, dir)

	svc := New()
	ctx := context.Background()

	const starters = 4
	var wg sync.WaitGroup
	results := make(chan error, starters)

	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Start(ctx, testConfig())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, alreadyRunning int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrRunningAlready):
			alreadyRunning++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if alreadyRunning != starters-1 {
		t.Errorf("ErrRunningAlready count = %d, want %d", alreadyRunning, starters-1)
	}

	_ = svc.Stop(ctx)
}

func TestMonitor_SurvivesRestart(t *testing.T) {
	dir := setupDataDir(t)
	seedAccount(t, dir)

	svc := New()
	ctx := context.Background()

	if _, err := svc.Start(ctx, testConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first := svc.monitor
	if first == nil {
		t.Fatal("monitor not created on start")
	}
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if _, err := svc.Start(ctx, testConfig()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if svc.monitor != first {
		t.Error("monitor was recreated across restart")
	}
	_ = svc.Stop(ctx)
}

func TestAccessors_WhenStopped(t *testing.T) {
	setupDataDir(t)
	svc := New()

	if stats := svc.GetStats(); stats.TotalRequests != 0 {
		t.Errorf("GetStats = %+v", stats)
	}
	if logs := svc.GetLogs(10); len(logs) != 0 {
		t.Errorf("GetLogs = %v", logs)
	}
	// Must not panic without a monitor.
	svc.ClearLogs()
}

func TestStop_Timeout(t *testing.T) {
	dir := setupDataDir(t)
	seedAccount(t, dir)

	svc := New()
	if _, err := svc.Start(context.Background(), testConfig()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
