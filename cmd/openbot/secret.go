package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jdelaire/openbot/internal/keychain"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage gateway tokens in the OS keychain",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "set <account>",
		Short:     "Store a token read from stdin",
		Long:      "Accounts: " + keychain.TelegramToken + ", " + keychain.WSBridgeToken + ".",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{keychain.TelegramToken, keychain.WSBridgeToken},
		RunE: func(cmd *cobra.Command, args []string) error {
			account := args[0]
			if account != keychain.TelegramToken && account != keychain.WSBridgeToken {
				return fmt.Errorf("unknown account %q", account)
			}
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			value := strings.TrimSpace(line)
			if value == "" {
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				return fmt.Errorf("empty token")
			}
			if err := keychain.Set(account, value); err != nil {
				return fmt.Errorf("store %s: %w", account, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stored\n", account)
			return nil
		},
	})
	return cmd
}
