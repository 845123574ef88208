package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jdelaire/openbot/internal/config"
)

func newRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:           "openbot",
		Short:         "Group chat bot with commands, moderation and games",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.BindEnv(v)
			return config.ReadFile(v, v.GetString("config"))
		},
	}

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().String("log-format", "", "Logging format: text|json.")
	cmd.PersistentFlags().String("data-dir", "", "Directory for settings, database and socket.")
	_ = v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("logging.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", cmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("data_dir", cmd.PersistentFlags().Lookup("data-dir"))

	cmd.AddCommand(newRunCmd(v))
	cmd.AddCommand(newSendCmd(v))
	cmd.AddCommand(newReloadCmd(v))
	cmd.AddCommand(newSecretCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
