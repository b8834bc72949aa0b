package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ManuelReschke/Agape/internal/pkg/env"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dbURL := fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true&parseTime=true",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	log.Printf("[Migrate] Connecting to %s@%s:%s/%s",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	m, err := migrate.New("file://"+env.GetEnv("MIGRATIONS_DIR", "migrations"), dbURL)
	if err != nil {
		log.Fatalf("[Migrate] Init failed: %v", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Printf("[Migrate] Close failed: %v, %v", sourceErr, dbErr)
		}
	}()

	switch os.Args[1] {
	case "up":
		report(m.Up(), "schema is up to date")

	case "down":
		report(m.Steps(-1), "rolled back one step")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalf("[Migrate] goto needs a version")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("[Migrate] Invalid version %q: %v", os.Args[2], err)
		}
		report(m.Migrate(uint(version)), fmt.Sprintf("schema at version %d", version))

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Println("[Migrate] No migrations applied yet")
		case err != nil:
			log.Fatalf("[Migrate] Reading version failed: %v", err)
		case dirty:
			log.Printf("[Migrate] Version %d (dirty)", version)
		default:
			log.Printf("[Migrate] Version %d", version)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func report(err error, done string) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("[Migrate] No change")
	case err != nil:
		log.Fatalf("[Migrate] Failed: %v", err)
	default:
		log.Printf("[Migrate] Done, %s", done)
	}
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/migrate [command]")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current version")
}
