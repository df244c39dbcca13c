// Command migrate manages the engine's schema. The server applies pending
// migrations on startup; this tool covers the operational paths the server
// does not, like rollbacks and repairing a dirty version after a crash.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	migrationsPath := flag.String("migrations", "migrations", "path to the migration files")
	databaseURL := flag.String("database", "sqlite://data/insight.db", "database URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	m, err := migrate.New("file://"+*migrationsPath, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to open migration source: %v", err)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		report(m.Up(), "Schema is up to date")
	case "down":
		report(m.Steps(-1), "Rolled back one migration")
	case "drop":
		report(m.Drop(), "Schema dropped")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("Failed to read schema version: %v", err)
		}
		fmt.Printf("version %d dirty=%v\n", version, dirty)
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires a version argument")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatalf("Invalid version %q: %v", flag.Arg(1), err)
		}
		report(m.Force(version), fmt.Sprintf("Forced schema version to %d", version))
	default:
		log.Fatalf("Unknown command %q", cmd)
	}
}

func report(err error, message string) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println(message)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate [flags] <command>

Commands:
  up             apply all pending migrations
  down           roll back the most recent migration
  drop           drop everything in the database
  version        print the current schema version
  force <ver>    set the schema version without running migrations

Flags:
`)
	flag.PrintDefaults()
}
