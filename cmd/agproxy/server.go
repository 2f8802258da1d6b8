package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/antigravity-tools/agproxy/internal/account"
	"github.com/antigravity-tools/agproxy/internal/config"
	"github.com/antigravity-tools/agproxy/internal/logging"
	"github.com/antigravity-tools/agproxy/internal/service"
	"github.com/antigravity-tools/agproxy/internal/watcher"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage the proxy server",
	}

	var port int
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the proxy server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(port)
		},
	}
	startCmd.Flags().IntVarP(&port, "port", "p", 0, "port override")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the proxy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("The proxy runs in the foreground under 'server start'; stop it with Ctrl+C or your service manager.")
			return nil
		},
	}

	cmd.AddCommand(startCmd, stopCmd)
	return cmd
}

func runServer(portOverride int) error {
	dataDir, err := account.DataDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(dataDir, "config.yaml")

	appCfg, err := config.LoadAppConfig(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		appCfg.Proxy.Port = portOverride
	}
	if err = logging.ConfigureOutput(appCfg.Proxy.LogFile); err != nil {
		return err
	}

	svc := service.New()
	status, err := svc.Start(context.Background(), appCfg.Proxy)
	if err != nil {
		return err
	}
	fmt.Printf("Server running at %s (%d active accounts)\n", status.BaseURL, status.ActiveAccounts)
	fmt.Println("Press Ctrl+C to stop")

	w := watcher.New(configPath, nil)
	if err = w.Start(); err != nil {
		log.Warnf("config watcher unavailable: %v", err)
	} else {
		defer w.Stop()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return svc.Stop(ctx)
}
