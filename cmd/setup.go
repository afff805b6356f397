package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"blogwatch/config"

	"github.com/BurntSushi/toml"
	"github.com/cqroot/prompt"
	"github.com/urfave/cli/v2"
)

const (
	competitiveAPI = "https://www.fortnite.com/competitive/api/blog/getPosts?offset=0&category=&locale=en&rootPageSlug=news&postsPerPage=0"
	normalAPI      = "https://www.fortnite.com/api/blog/getPosts?category=&locale=en&offset=0&postsPerPage=0&rootPageSlug=blog&sessionInvalidated=true"
)

func setupCmd() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a starter configuration file",
		Description: `Asks for the Discord channel to announce to and writes a starter
configuration file with the default feeds and formatting rules.

The bot token is not stored in the file; pass it via the
BLOGWATCH_DISCORD_TOKEN environment variable instead.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/blogwatch.toml",
				Usage:   "Path to write the configuration file to",
				EnvVars: []string{"BLOGWATCH_CONFIG"},
			},
		},
		Action: func(ctx *cli.Context) error {
			channelID, err := prompt.New().Ask("Channel ID:").Input("")
			if err != nil {
				return err
			}

			cfg := config.TomlConfig{
				Feeds: []config.TomlFeed{
					{Name: "competitive", URL: competitiveAPI, Category: "Competitive"},
					{Name: "normal", URL: normalAPI, Category: "Normal"},
				},
				Formatting: config.TomlFormatting{
					StripPhrases: []string{"the competitive Fortnite team"},
					LinkBase:     "https://www.fortnite.com/blog/",
					FallbackLink: "https://www.fortnite.com/",
					Color:        0x000000,
				},
				Discord: config.TomlDiscord{ChannelID: channelID},
				Timings: config.TomlTimings{
					PollIntervalSeconds: 60,
					MessageDelayMs:      2000,
				},
			}

			path := ctx.String("config")
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("could not create config directory: %w", err)
				}
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("could not create config file: %w", err)
			}
			defer f.Close()

			if err := toml.NewEncoder(f).Encode(cfg); err != nil {
				return fmt.Errorf("could not write config: %w", err)
			}

			fmt.Println("Wrote configuration to", path)
			return nil
		},
	}
}
