// Package main provides the agproxy command line interface. The proxy runs
// in the foreground under "server start"; accounts and configuration are
// managed with the remaining subcommands.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/antigravity-tools/agproxy/internal/buildinfo"
	"github.com/antigravity-tools/agproxy/internal/logging"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	wd, err := os.Getwd()
	if err == nil {
		if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	root := &cobra.Command{
		Use:           "agproxy",
		Short:         "Multi-protocol proxy for Gemini-class backends over pooled accounts",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServerCmd())
	root.AddCommand(newAccountCmd())
	root.AddCommand(newConfigCmd())

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
