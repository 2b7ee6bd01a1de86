// Package main provides labelsyncctl, the offline administration tool for a
// LabelSync data directory.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/listenupapp/labelsync/internal/auth"
	"github.com/listenupapp/labelsync/internal/config"
	"github.com/listenupapp/labelsync/internal/legacy"
	"github.com/listenupapp/labelsync/internal/logger"
	"github.com/listenupapp/labelsync/internal/migration"
	"github.com/listenupapp/labelsync/internal/search"
	"github.com/listenupapp/labelsync/internal/store"
)

func main() {
	cmd := &cli.Command{
		Name:  "labelsyncctl",
		Usage: "LabelSync data directory administration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "server data directory",
				Sources: cli.EnvVars("DATA_PATH"),
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(),
			tokenCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "labelsyncctl:", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cli.Command) *logger.Logger {
	return logger.New(logger.Config{
		Writer: os.Stderr,
		Level:  logger.ParseLevel(cmd.String("log-level")),
	})
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "copy legacy per-user documents into the store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "legacy-path",
				Usage:    "legacy SQLite export",
				Sources:  cli.EnvVars("LEGACY_PATH"),
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "user",
				Usage: "legacy user id to migrate; repeat for more, omit for all",
			},
		},
		Action: runMigrate,
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(cmd)
	data := config.DataConfig{BasePath: cmd.String("data-path")}

	src, err := legacy.Open(cmd.String("legacy-path"), log.Component("legacy"))
	if err != nil {
		return err
	}
	defer src.Close()

	index, err := search.NewProfileIndex(search.Options{DataPath: data.SearchPath(), Logger: log.Component("search")})
	if err != nil {
		return err
	}
	defer index.Close()

	st, err := store.New(data.StorePath(), log.Logger, search.NewIndexer(index, log.Component("search")))
	if err != nil {
		return err
	}
	defer st.Close()

	rep, runErr := migration.New(src, st, log.Component("migration")).Run(ctx, cmd.StringSlice("user"))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return runErr
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue an access token signed with the data directory key",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Usage:    "user id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "email claim",
			},
			&cli.BoolFlag{
				Name:  "admin",
				Usage: "grant the admin claim",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime",
				Value: time.Hour,
			},
		},
		Action: runToken,
	}
}

func runToken(_ context.Context, cmd *cli.Command) error {
	key, err := auth.LoadOrGenerateKey(cmd.String("data-path"))
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(key, cmd.Duration("ttl"))
	if err != nil {
		return err
	}

	tok, expires, err := tokens.IssueAccessToken(auth.Subject{
		UserID:  cmd.String("user"),
		Email:   cmd.String("email"),
		IsAdmin: cmd.Bool("admin"),
	})
	if err != nil {
		return err
	}

	fmt.Println(tok)
	fmt.Fprintln(os.Stderr, "expires", expires.Format(time.RFC3339))
	return nil
}
