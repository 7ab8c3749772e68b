// Command migrate manages the database schema outside the server process.
//
//	migrate up            apply pending SQL migrations (postgres)
//	migrate auto          create or update tables from the models
//	migrate status        print applied and pending migrations
//	migrate down VERSION  revert one SQL migration
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"skillswap/internal/config"
	"skillswap/internal/database"
	"skillswap/internal/middleware"

	"gorm.io/gorm"
)

type command struct {
	args int
	run  func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up":     {run: up},
	"auto":   {run: auto},
	"status": {run: status},
	"down":   {args: 1, run: down},
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [-timeout d] <up|auto|status|down VERSION>")
	}
	flag.Parse()

	cmd, ok := commands[flag.Arg(0)]
	if !ok || flag.NArg()-1 != cmd.args {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fail("load config", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, os.Getenv("LOG_LEVEL"))

	db, err := database.Open(cfg)
	if err != nil {
		fail("connect database", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		fail("connect database", err)
	}
	defer func() { _ = sqlDB.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := cmd.run(ctx, db, cfg, flag.Args()[1:]); err != nil {
		cancel()
		_ = sqlDB.Close()
		fail(flag.Arg(0), err)
	}
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "migrate: %s: %v\n", step, err)
	os.Exit(1)
}

func up(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	if cfg.DBDriver != "postgres" {
		return fmt.Errorf("versioned scripts are postgres only; run \"auto\" for %s", cfg.DBDriver)
	}
	return database.RunMigrations(ctx, db, database.GetMigrations())
}

func auto(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	return database.AutoMigrate(ctx, db)
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("environment  %s (%s)\n", st.Environment, st.Driver)
	fmt.Printf("automigrate  %t\n", st.WillRunAutoMigrate)
	fmt.Printf("sql scripts  %t\n", st.WillRunSQL)
	for _, v := range st.AppliedVersions {
		fmt.Printf("  applied  %06d\n", v)
	}
	for _, m := range st.PendingMigrations {
		fmt.Printf("  pending  %s\n", m)
	}
	return nil
}

func down(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("version %q is not a number", args[0])
	}
	return database.RollbackMigration(ctx, db, version)
}
