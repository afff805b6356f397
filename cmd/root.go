package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "blogwatch",
		Usage: "Announce new and updated Fortnite blog posts on Discord",
		Description: `Blogwatch polls the Fortnite competitive and normal blog APIs
		and announces every new or materially changed post to a Discord
		channel.

		Posts are deduplicated against an SQLite database so restarts do
		not repeat announcements. Competitive posts are always announced
		before normal posts, and messages are paced so the channel stays
		readable.

		Flags can generally be set via environment variables, e.g.:

		--database => BLOGWATCH_DATABASE=blogwatch.db
		--config => BLOGWATCH_CONFIG=config/blogwatch.toml
		`,
		Commands: []*cli.Command{
			watchCmd(),
			checkCmd(),
			migrateCmd(),
			rollbackCmd(),
			setupCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
