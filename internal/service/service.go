// Package service owns the proxy lifecycle: a two-state machine (stopped,
// running) around an exclusively-owned instance slot. Start assembles the
// token pool, monitor, and listener into an instance; Stop tears the
// instance down. Status, stats, and log queries work in either state.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/antigravity-tools/agproxy/internal/account"
	"github.com/antigravity-tools/agproxy/internal/api"
	"github.com/antigravity-tools/agproxy/internal/config"
	"github.com/antigravity-tools/agproxy/internal/logging"
	"github.com/antigravity-tools/agproxy/internal/monitor"
	"github.com/antigravity-tools/agproxy/internal/token"
	log "github.com/sirupsen/logrus"
)

// Instance exists exactly while the service is running. It is created only
// by Start and destroyed only by Stop.
type Instance struct {
	Config       config.ProxyConfig
	TokenManager *token.Manager
	Server       *api.Server
	done         <-chan struct{}
}

// Status is the lifecycle DTO handed to the CLI and management surfaces.
type Status struct {
	Running        bool   `json:"running"`
	Port           int    `json:"port"`
	BaseURL        string `json:"base_url"`
	ActiveAccounts int    `json:"active_accounts"`
}

// Service is the process-wide proxy controller. The instance slot and the
// monitor slot are each guarded by a reader-writer lock: many concurrent
// readers for status queries, one writer across a start or stop transition.
type Service struct {
	instanceMu sync.RWMutex
	instance   *Instance

	monitorMu sync.RWMutex
	monitor   *monitor.Monitor
}

// New creates a stopped service.
func New() *Service {
	return &Service{}
}

// Start transitions the service to running with the given config snapshot.
// It fails with ErrRunningAlready when an instance is live, and leaves the
// service stopped with no partial instance on any other failure. The monitor
// survives failures and stop/start cycles.
func (s *Service) Start(ctx context.Context, cfg config.ProxyConfig) (Status, error) {
	s.instanceMu.Lock()
	defer s.instanceMu.Unlock()

	if s.instance != nil {
		return Status{}, ErrRunningAlready
	}

	cfg.Sanitize()

	// 1. Acquire the monitor, creating it on first start, and apply the
	// logging toggle.
	mon := s.acquireMonitor()
	mon.SetEnabled(cfg.EnableLogging)
	logging.SetDebug(cfg.Debug)

	// 2. Resolve the data directory and make sure the accounts area exists.
	dataDir, err := account.DataDir()
	if err != nil {
		return Status{}, err
	}
	if _, err = account.AccountsDir(); err != nil {
		return Status{}, err
	}

	// 3. Construct the token manager and push the scheduling config.
	manager := token.NewManager(dataDir)
	manager.UpdateSchedulingConfig(cfg.Scheduling)
	manager.SetDisableCooling(cfg.Experimental.DisableCooling)

	// 4. Load accounts and enforce the non-empty precondition.
	active, err := manager.LoadAccounts(ctx)
	if err != nil {
		return Status{}, err
	}
	if active == 0 && !cfg.Zai.IsDispatching() {
		return Status{}, ErrNoAccounts
	}

	// 5. Derive the listener security snapshot.
	security := config.SecurityFromProxyConfig(&cfg)

	// 6. Launch the listener.
	server, done, err := api.Start(api.Deps{
		BindAddress:      cfg.GetBindAddress(),
		Port:             cfg.Port,
		TokenManager:     manager,
		CustomMapping:    cloneMapping(cfg.CustomMapping),
		OpenAIMapping:    cloneMapping(cfg.OpenAIMapping),
		AnthropicMapping: cloneMapping(cfg.AnthropicMapping),
		Strategies:       cloneStrategies(cfg.ModelStrategies),
		RequestTimeout:   time.Duration(cfg.RequestTimeout) * time.Second,
		UpstreamProxy:    cfg.UpstreamProxy,
		Security:         security,
		Zai:              cfg.Zai,
		Monitor:          mon,
		Experimental:     cfg.Experimental,
	})
	if err != nil {
		return Status{}, fmt.Errorf("failed to start listener: %w", err)
	}

	// 7. Persist the config snapshot as the last-running configuration.
	if err = s.persistConfig(dataDir, cfg); err != nil {
		server.Stop()
		<-done
		return Status{}, err
	}

	// 8. Publish the instance.
	s.instance = &Instance{
		Config:       cfg,
		TokenManager: manager,
		Server:       server,
		done:         done,
	}

	status := Status{
		Running:        true,
		Port:           server.Port(),
		BaseURL:        fmt.Sprintf("http://127.0.0.1:%d", server.Port()),
		ActiveAccounts: active,
	}
	log.Infof("proxy service started on %s with %d accounts", status.BaseURL, active)
	return status, nil
}

// Stop transitions the service to stopped, awaiting the listener task. It
// fails with ErrNotRunning when no instance is live.
func (s *Service) Stop(ctx context.Context) error {
	s.instanceMu.Lock()
	defer s.instanceMu.Unlock()

	if s.instance == nil {
		return ErrNotRunning
	}

	instance := s.instance
	s.instance = nil

	instance.Server.Stop()
	select {
	case <-instance.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Info("proxy service stopped")
	return nil
}

// GetStatus reports the lifecycle state. Works in either state.
func (s *Service) GetStatus() Status {
	s.instanceMu.RLock()
	defer s.instanceMu.RUnlock()

	if s.instance == nil {
		return Status{}
	}
	port := s.instance.Server.Port()
	return Status{
		Running:        true,
		Port:           port,
		BaseURL:        fmt.Sprintf("http://127.0.0.1:%d", port),
		ActiveAccounts: s.instance.TokenManager.Len(),
	}
}

// GetStats returns the monitor's aggregate counters, zero when never started.
func (s *Service) GetStats() monitor.Stats {
	s.monitorMu.RLock()
	defer s.monitorMu.RUnlock()
	if s.monitor == nil {
		return monitor.Stats{ModelCounts: map[string]uint64{}}
	}
	return s.monitor.GetStats()
}

// GetLogs returns up to limit recent request logs, newest first.
func (s *Service) GetLogs(limit int) []monitor.RequestLog {
	s.monitorMu.RLock()
	defer s.monitorMu.RUnlock()
	if s.monitor == nil {
		return nil
	}
	return s.monitor.GetLogs(limit)
}

// ClearLogs drops the monitor's logs and counters. Idempotent.
func (s *Service) ClearLogs() {
	s.monitorMu.RLock()
	defer s.monitorMu.RUnlock()
	if s.monitor != nil {
		s.monitor.Clear()
	}
}

// acquireMonitor returns the shared monitor, creating it on first use. The
// monitor outlives instances and is reused across start/stop cycles.
func (s *Service) acquireMonitor() *monitor.Monitor {
	s.monitorMu.Lock()
	defer s.monitorMu.Unlock()
	if s.monitor == nil {
		s.monitor = monitor.New(monitor.DefaultCapacity)
	}
	return s.monitor
}

// persistConfig writes the running config back into the app config document.
func (s *Service) persistConfig(dataDir string, cfg config.ProxyConfig) error {
	path := filepath.Join(dataDir, "config.yaml")
	appCfg, err := config.LoadAppConfig(path)
	if err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}
	appCfg.Proxy = cfg
	if err = config.SaveAppConfig(path, appCfg); err != nil {
		return fmt.Errorf("failed to persist config: %w", err)
	}
	return nil
}

func cloneMapping(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrategies(m map[string]config.ModelStrategy) map[string]config.ModelStrategy {
	out := make(map[string]config.ModelStrategy, len(m))
	for k, v := range m {
		v.Candidates = append([]string(nil), v.Candidates...)
		out[k] = v
	}
	return out
}
