package main

import (
	"fmt"
	"strings"

	"github.com/antigravity-tools/agproxy/internal/account"
	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage pooled accounts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			accounts, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			current := store.Current()

			fmt.Printf("%-40s %-30s %-10s %-10s\n", "ID", "Email", "Tier", "Active")
			fmt.Println(strings.Repeat("-", 95))
			for _, acc := range accounts {
				active := ""
				if acc.ID == current {
					active = "*"
				}
				fmt.Printf("%-40s %-30s %-10s %-10s\n", acc.ID, acc.Email, acc.Tier(), active)
			}
			return nil
		},
	}

	useCmd := &cobra.Command{
		Use:   "use <id-or-email>",
		Short: "Switch the active account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			acc, err := store.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err = store.SetCurrent(acc.ID); err != nil {
				return err
			}
			fmt.Printf("Switched to account: %s\n", acc.Email)
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err = store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted account %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, useCmd, deleteCmd)
	return cmd
}

func openStore() (*account.Store, error) {
	dataDir, err := account.DataDir()
	if err != nil {
		return nil, err
	}
	return account.NewStore(dataDir), nil
}
