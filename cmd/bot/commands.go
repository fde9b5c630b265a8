package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/urfave/cli/v2"

	"fenixbot/internal/app"
	"fenixbot/internal/config"
	"fenixbot/internal/course"
	"fenixbot/internal/feed"
	logx "fenixbot/pkg/logx"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "./config.json",
		Usage:   "path to the JSON or YAML config file",
		EnvVars: []string{"FENIXBOT_CONFIG"},
	}
}

func rootApp() *cli.App {
	return &cli.App{
		Name:  "fenixbot",
		Usage: "Post Fenix course announcements to Telegram groups",
		Description: `Tracks the announcement feeds of Fenix courses and posts new,
		edited and removed announcements to the Telegram groups that follow them.

		Flags can be set via environment variables, e.g.:

		--config => FENIXBOT_CONFIG=/etc/fenixbot/config.yaml
		`,
		Commands: []*cli.Command{
			runCmd(),
			checkLinkCmd(),
			dumpCmd(),
		},
		Action: func(ctx *cli.Context) error {
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start the bot and the update scheduler",
		Flags: []cli.Flag{
			configFlag(),
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: 15 * time.Second,
				Usage: "upper bound for a graceful stop",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.NewApp(c.String("config"))
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			// Not running under systemd is fine.
			_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

			reason := app.StopSignal
			select {
			case <-ctx.Done():
			case <-a.Done():
				reason = app.StopFatalError
			}
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			stopCtx, stopCancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
			defer stopCancel()
			stopErr := a.Stop(stopCtx, reason)
			if err := a.Err(); err != nil {
				return err
			}
			return stopErr
		},
	}
}

func checkLinkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check-link",
		Usage:     "Validate a course link and print its feed URL",
		ArgsUsage: "<link>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("expected exactly one link, e.g. "+course.ExpectedLinkFormat, 2)
			}
			li, err := course.Validate(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("course:   %s\nyears:    %s\nsemester: %s\nfeed:     %s%s\n",
				li.Name, li.Years, li.Semester, feed.DefaultBaseURL, li.FeedPath())
			return nil
		},
	}
}

func dumpCmd() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Print the stored registry snapshot as JSON",
		Flags: []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := config.NewConfigManager(c.String("config")).Load()
			if err != nil {
				return err
			}
			st, err := app.OpenStorage(cfg, logx.NewConsole("warn"))
			if err != nil {
				return err
			}
			defer st.Close()

			snap, found, err := st.TryLoad(c.Context)
			if err != nil {
				return err
			}
			if !found {
				return cli.Exit("no snapshot stored yet", 1)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
}
