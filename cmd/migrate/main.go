package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/carehub-backend/pkg/config"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up               apply pending migrations
  down             roll back the latest migration
  to <version>     migrate up or down to version
  status           list migrations and whether they are applied
  validate         check migration files without a database
  new <name>       write an empty migration into -dir (default %s)
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() { fmt.Fprintf(os.Stderr, usage, migrate.SourceDir) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, arg := flag.Arg(0), flag.Arg(1)

	migrations := migrate.Embedded()
	if *dir != "" {
		migrations = migrate.Dir(*dir)
	}

	switch command {
	case "validate":
		exitOn(migrate.Validate(migrations), "validation failed")
		fmt.Println("migrations valid")
		return
	case "new":
		if arg == "" {
			fail("new needs a migration name")
		}
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.NewFile(target, arg, time.Now())
		exitOn(err, "create migration")
		fmt.Println(path)
		return
	}

	cfg, err := config.Load()
	exitOn(err, "load config")
	if cfg.DB.Driver == db.DriverSQLite {
		fail("goose migrations target postgres; sqlite schemas are auto-migrated by the services")
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "command": command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	exitOn(err, "connect database")
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	exitOn(err, "extract sql.DB")

	migrator, err := migrate.New(sqlDB, goose.DialectPostgres, migrations, logg)
	exitOn(err, "build migrator")

	switch command {
	case "up":
		exitOn(migrator.Up(ctx), "up")
	case "down":
		exitOn(migrator.Down(ctx), "down")
	case "to":
		version, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fail(fmt.Sprintf("to needs a YYYYMMDDHHMMSS version, got %q", arg))
		}
		exitOn(migrator.To(ctx, version), "migrate to version")
	case "status":
		rows, err := migrator.Status(ctx)
		exitOn(err, "status")
		printStatus(rows)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printStatus(rows []migrate.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, row := range rows {
		state, at := "pending", "-"
		if row.Applied {
			state, at = "applied", row.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", row.Version, state, at, row.Path)
	}
	_ = w.Flush()
}

func exitOn(err error, what string) {
	if err == nil {
		return
	}
	fail(fmt.Sprintf("%s: %v", what, err))
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
