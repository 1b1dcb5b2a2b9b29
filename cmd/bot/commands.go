package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"transferbot/internal/app"
	"transferbot/internal/config"
	"transferbot/internal/cursor"
	"transferbot/internal/feed"
	"transferbot/internal/storage"
	"transferbot/internal/task/scheduler"
	"transferbot/internal/transfer"
	logx "transferbot/pkg/logx"
)

func runCmd() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the bot until SIGINT/SIGTERM (default)",
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	a, err := app.New(c.String("config"))
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(context.Background()); err != nil {
		_ = a.Stop(context.Background(), app.StopFatalError)
		return fmt.Errorf("start: %w", err)
	}

	var reason app.StopReason
	select {
	case s := <-sigs:
		reason = app.StopSIGINT
		if s == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = a.Stop(ctx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func checkCmd() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Validate the config and print the monitored feeds",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			feeds, err := app.FeedDescriptors(cfg)
			if err != nil {
				return err
			}
			ps, err := scheduler.ParseSchedule(cfg.Monitor.Interval)
			if err != nil {
				return fmt.Errorf("monitor.interval: %w", err)
			}

			fmt.Printf("config ok: %s\n", c.String("config"))
			every := ps.Cron
			if ps.Kind == scheduler.SpecInterval {
				every = ps.Every.String()
			}
			fmt.Printf("channel: %d  interval: %s  timezone: %s  state: %s\n",
				cfg.Telegram.ChannelID, every, cfg.Monitor.Timezone, cfg.State.Driver)
			for _, f := range feeds {
				fmt.Printf("  %-20s #%06X  %s\n", f.Label, f.Accent, f.Endpoint)
			}
			return nil
		},
	}
}

func stateCmd() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Print the persisted per-feed cursors",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			store, keys, err := openCursors(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			st := store.Load(c.Context, keys)
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

func pollCmd() *cli.Command {
	return &cli.Command{
		Name:  "poll",
		Usage: "Fetch one feed and print what would be announced (nothing is sent or saved)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "feed",
				Aliases: []string{"f"},
				Usage:   "feed key (default: first configured feed)",
			},
			&cli.Int64Flag{
				Name:  "cursor",
				Value: -1,
				Usage: "override the stored cursor",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			feeds, err := app.FeedDescriptors(cfg)
			if err != nil {
				return err
			}
			desc, err := pickFeed(feeds, c.String("feed"))
			if err != nil {
				return err
			}

			cur := c.Int64("cursor")
			if cur < 0 {
				store, keys, err := openCursors(cfg)
				if err != nil {
					return err
				}
				cur = store.Load(c.Context, keys).Get(desc.Key)
				_ = store.Close()
			}

			timeout, err := config.ParseDurationOrDefault("http.feed_timeout", cfg.HTTP.FeedTimeout, 12*time.Second)
			if err != nil {
				return err
			}
			p := feed.NewPoller(nil, timeout, cfg.HTTP.UserAgent, logx.NewConsole(cfg.Logging.Level))
			res := p.Poll(c.Context, desc, cur)
			if res.Err != nil {
				return fmt.Errorf("poll %s: %w", desc.Key, res.Err)
			}

			loc := transfer.LoadLocation(cfg.Monitor.Timezone)
			for i := range res.Records {
				fmt.Printf("#%d  %s\n", res.Records[i].ID, transfer.FallbackText(&res.Records[i], desc.Label, loc))
			}
			fmt.Printf("%s: %d new, cursor %d -> %d\n", desc.Key, len(res.Records), cur, res.Cursor)
			return nil
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.NewConfigManager(c.String("config")).Parse()
	if err != nil {
		return nil, err
	}
	if err := config.ValidateRuntime(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openCursors(cfg *config.Config) (*cursor.Store, []string, error) {
	sc, err := app.StorageConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	// Same keys the monitor uses, so trimmed keys match the stored ones.
	feeds, err := app.FeedDescriptors(cfg)
	if err != nil {
		return nil, nil, err
	}
	keys := make([]string, 0, len(feeds))
	for _, f := range feeds {
		keys = append(keys, f.Key)
	}
	log := logx.NewConsole(cfg.Logging.Level)
	backend, err := storage.Open(sc, log)
	if err != nil {
		return nil, nil, err
	}
	return cursor.New(backend, log), keys, nil
}

func pickFeed(feeds []feed.Descriptor, key string) (feed.Descriptor, error) {
	if len(feeds) == 0 {
		return feed.Descriptor{}, errors.New("no feeds configured")
	}
	if key == "" {
		return feeds[0], nil
	}
	for _, f := range feeds {
		if f.Key == key {
			return f, nil
		}
	}
	return feed.Descriptor{}, fmt.Errorf("unknown feed %q", key)
}
