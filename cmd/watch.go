package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"blogwatch/config"
	"blogwatch/discord"
	"blogwatch/fetch"
	"blogwatch/monitor"
	"blogwatch/notify"
	"blogwatch/server"
	"blogwatch/store"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch the blog feeds and announce changes",
		Description: `Starts the poll loop and the ops HTTP server.

Connects to the Discord gateway, waits for the session to become ready and
then polls the configured feeds on a fixed interval. Every new or changed
post is announced to the configured channel, paced so the channel stays in
chronological order.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/blogwatch.toml",
				Usage:   "Path to feeds configuration file",
				EnvVars: []string{"BLOGWATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "blogwatch.db",
				Usage:   "SQLite database file for dedup state",
				EnvVars: []string{"BLOGWATCH_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Discord bot token",
				EnvVars: []string{"BLOGWATCH_DISCORD_TOKEN"},
			},
			&cli.StringFlag{
				Name:    "channel",
				Usage:   "Discord channel id, overrides the config file",
				EnvVars: []string{"BLOGWATCH_DISCORD_CHANNEL"},
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "Port for the ops HTTP server",
				EnvVars: []string{"BLOGWATCH_PORT"},
			},
			&cli.StringFlag{
				Name:    "user-agent",
				Usage:   "User agent sent to the blog APIs",
				EnvVars: []string{"BLOGWATCH_USER_AGENT"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"BLOGWATCH_LOG_LEVEL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			if level, err := log.ParseLevel(ctx.String("log-level")); err == nil {
				log.SetLevel(level)
			}

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if len(cfg.Feeds) == 0 {
				return errors.New("no feeds configured")
			}

			token := ctx.String("token")
			if token == "" {
				return errors.New("please provide a Discord bot token")
			}

			channelID := ctx.String("channel")
			if channelID == "" {
				channelID = cfg.Discord.ChannelID
			}
			if channelID == "" {
				return errors.New("please configure a Discord channel id")
			}

			database := ctx.String("database")
			if err := store.Migrate(database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			st, err := store.NewStore(database)
			if err != nil {
				return err
			}
			defer st.Close()

			runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			state, err := st.Load(runCtx)
			if err != nil {
				// Start fresh rather than refuse to run
				log.Errorf("Error loading dedup state, starting fresh: %s", err)
				state = monitor.State{}
			}

			gateway := discord.NewGateway(discord.GatewayConfig{Token: token})
			go gateway.Run(runCtx)

			log.Info("Waiting for Discord gateway to become ready...")
			select {
			case <-gateway.Ready():
			case <-time.After(cfg.ReadyTimeout()):
				return errors.New("discord gateway did not become ready in time")
			case <-runCtx.Done():
				return nil
			}

			poller := monitor.NewPoller(monitor.PollerConfig{
				Feeds: lo.Map(cfg.Feeds, func(feed config.TomlFeed, _ int) monitor.Feed {
					return monitor.Feed{Name: feed.Name, URL: feed.URL, Category: feed.Category}
				}),
				Fetcher:   fetch.NewClient(ctx.String("user-agent")),
				Store:     st,
				Scheduler: notify.NewScheduler(),
				Sink:      discord.NewClient(token, channelID),
				Format: notify.FormatConfig{
					StripPhrases: cfg.Formatting.StripPhrases,
					LinkBase:     cfg.Formatting.LinkBase,
					FallbackLink: cfg.Formatting.FallbackLink,
					Color:        cfg.Formatting.Color,
				},
				PollInterval: cfg.PollInterval(),
				MessageDelay: cfg.MessageDelay(),
			}, state)

			app := server.Server(&server.ServerConfig{Store: st})
			go func() {
				if err := app.Listen(fmt.Sprintf(":%d", ctx.Int("port"))); err != nil {
					log.Errorf("Ops server stopped: %s", err)
				}
			}()

			log.WithFields(log.Fields{
				"feeds":    len(cfg.Feeds),
				"interval": cfg.PollInterval().String(),
			}).Info("Starting blogwatch")

			go poller.Run(runCtx)

			<-runCtx.Done()
			log.Info("Gracefully shutting down...")
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				log.Errorf("Error shutting down ops server: %s", err)
			}
			return nil
		},
	}
}
