package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"blogwatch/config"
	"blogwatch/fetch"
	"blogwatch/models"
	"blogwatch/monitor"
	"blogwatch/notify"
	"blogwatch/store"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Run one detection pass and print would-be notifications",
		Description: `Fetches the configured feeds once, runs change detection against
the current dedup state and prints every notification that a running watcher
would send, without delivering anything or updating the state.

Returns each notification as a JSON object on a single line. Use a tool like
jq to process the output.

Prints all other log messages to stderr.`,
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
				Name:    "user-agent",
				Usage:   "User agent sent to the blog APIs",
				EnvVars: []string{"BLOGWATCH_USER_AGENT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout clean for the JSON output
			log.SetOutput(os.Stderr)

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			state := monitor.State{}
			if st, err := store.NewStore(ctx.String("database")); err == nil {
				if loaded, err := st.Load(ctx.Context); err == nil {
					state = loaded
				} else {
					log.Warnf("Could not load dedup state, diffing against empty state: %s", err)
				}
				st.Close()
			} else {
				log.Warnf("Could not open database, diffing against empty state: %s", err)
			}

			client := fetch.NewClient(ctx.String("user-agent"))

			var posts []models.Post
			for _, feed := range cfg.Feeds {
				raw, err := client.FetchPosts(ctx.Context, feed.Name, feed.URL)
				if err != nil {
					log.Errorf("Error fetching feed %s: %s", feed.Name, err)
					continue
				}
				for _, r := range raw {
					if post, ok := monitor.Normalize(r, feed.Category); ok {
						posts = append(posts, post)
					}
				}
			}

			notifyList, _ := monitor.Detect(posts, state)
			for _, post := range notifyList {
				notification := notify.BuildNotification(post.Raw, notify.FormatConfig{
					StripPhrases: cfg.Formatting.StripPhrases,
					LinkBase:     cfg.Formatting.LinkBase,
					FallbackLink: cfg.Formatting.FallbackLink,
					Color:        cfg.Formatting.Color,
				})
				printStdout(notification)
			}

			log.Infof("Detected %d new or updated posts", len(notifyList))
			return nil
		},
	}
}

func printStdout(notification models.Notification) {
	// Print as single JSON string on a single line
	encoded, err := json.Marshal(notification)
	if err == nil {
		fmt.Println(string(encoded))
	}
}
