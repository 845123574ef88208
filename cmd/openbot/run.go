package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jdelaire/openbot/adapters/telegram"
	"github.com/jdelaire/openbot/adapters/wsbridge"
	"github.com/jdelaire/openbot/core"
	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/configwatch"
	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/internal/config"
	"github.com/jdelaire/openbot/internal/settings"
	"github.com/jdelaire/openbot/internal/store"
	"github.com/jdelaire/openbot/plugins/builtin"
	"github.com/jdelaire/openbot/plugins/games"
	"github.com/jdelaire/openbot/plugins/moderation"
	"github.com/jdelaire/openbot/plugins/shell"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the gateway and serve commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			secrets, err := config.ParseSecrets(nil)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v, secrets)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().String("gateway", "", "Gateway to connect: telegram|wsbridge.")
	_ = v.BindPFlag("gateway", cmd.Flags().Lookup("gateway"))
	return cmd
}

// inbound feeds envelopes from a gateway to sink until ctx is cancelled.
type inbound func(ctx context.Context, sink message.Sink) error

func openGateway(cfg *config.Config, logger *slog.Logger) (message.Gateway, inbound, error) {
	switch cfg.Gateway {
	case config.GatewayTelegram:
		bot, err := telegram.Open(cfg.TelegramToken, "")
		if err != nil {
			return nil, nil, err
		}
		if cfg.OwnerID == "" {
			cfg.OwnerID = strconv.FormatInt(bot.Self.ID, 10)
		}
		logger.Info("telegram authorized", "username", bot.Self.UserName)
		recv := func(ctx context.Context, sink message.Sink) error {
			return telegram.NewReceiver(bot, bot.Self.ID, sink, logger).Start(ctx)
		}
		return telegram.NewGateway(bot), recv, nil
	case config.GatewayWSBridge:
		c := wsbridge.New(cfg.WSBridgeURL, cfg.WSBridgeToken, logger)
		return c, c.Start, nil
	}
	return nil, nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	gw, recv, err := openGateway(&cfg, logger)
	if err != nil {
		return err
	}

	sett, err := settings.Open(settings.NewStore(cfg.SettingsPath()), settings.State{
		Prefix:  cfg.Prefix,
		Mode:    cfg.Mode,
		OwnerID: cfg.OwnerID,
		Sudo:    cfg.Sudo,
	}, logger)
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	words := games.DefaultWordBank()
	if cfg.WordBank != "" {
		if words, err = games.LoadWordBank(cfg.WordBank); err != nil {
			return err
		}
	}

	pipeline := core.NewPipeline(core.PipelineOptions{
		Watchdog:   cfg.Watchdog,
		ClearDelay: cfg.ClearDelay,
	}, logger)
	dispatcher := core.NewDispatcher(sett, gw, pipeline, logger)

	mod := moderation.New(moderation.Options{
		Store:     db,
		Registrar: dispatcher,
		IsSudo:    sett.IsSudo,
		WarnLimit: cfg.WarnLimit,
		Logger:    logger.With("plugin", "moderation"),
	})
	arena := games.NewManager(games.Options{
		Registrar:   dispatcher,
		IdleTimeout: cfg.GameIdleTimeout,
		IsSudo:      sett.IsSudo,
		IsBanned:    mod.Banned,
		Words:       words,
		Logger:      logger.With("plugin", "games"),
	})

	var reloader *core.Reloader
	builtins := builtin.New(builtin.Options{
		Settings: sett,
		Commands: dispatcher.Commands(),
		Reload:   func() (int, error) { return reloader.Reload() },
		Version:  version,
		Logger:   logger.With("plugin", "builtin"),
	})
	reloader = core.NewReloader(dispatcher.Commands(), func() ([]command.Descriptor, error) {
		var descs []command.Descriptor
		descs = append(descs, builtins.Commands()...)
		descs = append(descs, mod.Commands()...)
		descs = append(descs, arena.Commands()...)
		extra, err := shell.Commands(cfg.Manifest)
		if err != nil {
			return nil, err
		}
		return append(descs, extra...), nil
	}, logger)
	if _, err := reloader.Reload(); err != nil {
		return err
	}

	if err := mod.Restore(ctx); err != nil {
		logger.Error("moderation restore incomplete", "error", err)
	}

	watcher := configwatch.New(cfg.WatchInterval, logger)
	watcher.Watch(cfg.Manifest, reloader.OnFileChange)
	watcher.Watch(cfg.SettingsPath(), func(string) error { return sett.Reload() })

	gateways := core.NewGateways()
	if err := gateways.Register(gw); err != nil {
		return err
	}
	srv := core.NewServer(cfg.ControlSocket, gateways, reloader.Reload, logger)
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Shutdown()

	logger.Info("openbot started", "gateway", gw.Name(), "prefix", sett.Prefix(), "mode", sett.Mode(), "version", version)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return recv(gctx, dispatcher.Deliver) })
	err = g.Wait()

	dispatcher.Wait()
	logger.Info("openbot stopped")
	return err
}
