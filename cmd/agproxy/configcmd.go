package main

import (
	"fmt"
	"path/filepath"

	"github.com/antigravity-tools/agproxy/internal/account"
	"github.com/antigravity-tools/agproxy/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := account.DataDir()
			if err != nil {
				return err
			}
			appCfg, err := config.LoadAppConfig(filepath.Join(dataDir, "config.yaml"))
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(appCfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.AddCommand(showCmd)
	return cmd
}
