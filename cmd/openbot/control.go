package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jdelaire/openbot/core"
	"github.com/jdelaire/openbot/internal/config"
)

func newSendCmd(v *viper.Viper) *cobra.Command {
	var gateway string
	cmd := &cobra.Command{
		Use:   "send <chat-id> <text...>",
		Short: "Send a message through a running instance",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := core.SendPayload{
				Gateway: gateway,
				ChatID:  args[0],
				Text:    strings.Join(args[1:], " "),
			}
			resp, err := core.Call(cmd.Context(), config.SocketPath(v), core.ActionSend, payload)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", resp.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&gateway, "via", "", "Gateway name (defaults to the running gateway).")
	return cmd
}

func newReloadCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Rebuild the command set of a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := core.Call(cmd.Context(), config.SocketPath(v), core.ActionReload, nil)
			if err != nil {
				return fmt.Errorf("reload: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d commands loaded\n", resp.Commands)
			return nil
		},
	}
}
