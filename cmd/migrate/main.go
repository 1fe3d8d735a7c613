package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/posterloft/posterloft-backend/pkg/config"
	"github.com/posterloft/posterloft-backend/pkg/db"
	"github.com/posterloft/posterloft-backend/pkg/logger"
	"github.com/posterloft/posterloft-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "orders migrations directory")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate work on files only and never need credentials.
	switch *cmd {
	case "create":
		if *name == "" {
			exit("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exit("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit("orders migrations invalid: %v", err)
		}
		fmt.Println("orders migrations valid")
		return
	}

	cfg, err := config.LoadDatabaseOnly()
	if err != nil {
		exit("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": *dir})

	// Refuse to touch the database with a schema the service cannot write.
	if err := migrate.ValidateDir(*dir); err != nil {
		logg.Error(ctx, "orders migrations invalid", err)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "connect orders database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	runner, err := migrate.NewRunner(dbClient.SQL(), *dir)
	if err != nil {
		logg.Error(ctx, "build migration runner", err)
		os.Exit(1)
	}

	if *cmd == "version" {
		target, err := migrate.ParseVersion(*version)
		if err != nil {
			exit("%v", err)
		}
		err = runner.MigrateTo(ctx, target)
		report(ctx, logg, runner, err)
		return
	}

	command, err := migrate.ParseCommand(*cmd)
	if err != nil {
		exit("%v", err)
	}
	report(ctx, logg, runner, runner.Run(ctx, command))
}

func report(ctx context.Context, logg *logger.Logger, runner *migrate.Runner, err error) {
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	current, err := runner.Version(ctx)
	if err != nil {
		logg.Error(ctx, "read schema version", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "schema_version", current), "migration complete")
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
