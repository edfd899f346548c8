// Package main applies or rolls back the database schema.
//
// Usage:
//
//	go run ./cmd/migrate            # apply all pending migrations
//	go run ./cmd/migrate -down      # roll every migration back
//	go run ./cmd/migrate -version   # print the applied version
//
// DATABASE_URL is read from the environment, a .env file, or SSM through
// DATABASE_URL_SSM_PARAM outside local development.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"tenantkit/internal/config"
	"tenantkit/internal/db/migrate"
)

type options struct {
	direction   string
	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	down := fs.Bool("down", false, "roll back every migration instead of applying them")
	version := fs.Bool("version", false, "print the applied schema version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if *down && *version {
		return options{}, errors.New("-down and -version are mutually exclusive")
	}
	opts := options{direction: migrate.Up, showVersion: *version}
	if *down {
		opts.direction = migrate.Down
	}
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	_ = godotenv.Load()
	if err := config.ResolveSecrets(config.NewSecretProvider(os.Getenv("APP_ENV"), os.Getenv("AWS_REGION"))); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	dsn := os.Getenv("DATABASE_URL")

	if opts.showVersion {
		v, dirty, err := migrate.Version(dsn)
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Fprintln(stdout, "no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "version %d (dirty: %t)\n", v, dirty)
		return nil
	}

	if err := migrate.Run(dsn, opts.direction); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "migrations %s complete\n", opts.direction)
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}
