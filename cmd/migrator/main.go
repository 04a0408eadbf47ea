// Package main is the migration CLI for the HardbanRecords Lab database. The
// schema is embedded in the binary, so the tool needs only DATABASE_URL.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Set at build time with -ldflags.
var (
	Version   = "1.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	name      = "migrator"
)

func main() {
	var (
		configHelp  = flag.Bool("help", false, "Show help information")
		showVersion = flag.Bool("version", false, "Show version information")
		assumeYes   = flag.Bool("yes", false, "Skip the confirmation prompt for drop")
	)

	flag.Parse()

	if *showVersion {
		printVersionInfo()
		os.Exit(0)
	}

	if *configHelp || flag.NArg() < 1 {
		printUsage()
		os.Exit(0)
	}

	command := flag.Arg(0)

	config, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	runner, err := NewMigrationRunner(config, nil)
	if err != nil {
		log.Fatalf("Failed to create migration runner: %v", err)
	}

	err = executeCommand(command, runner, os.Stdin, *assumeYes)

	_ = runner.Close()

	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

// executeCommand runs command against runner. drop asks for confirmation on
// confirm unless assumeYes is set.
func executeCommand(command string, runner MigrationRunner, confirm io.Reader, assumeYes bool) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "version":
		return runner.Version()
	case "drop":
		if !assumeYes {
			fmt.Print("WARNING: This will drop all tables. Are you sure? (y/N): ")

			response, _ := bufio.NewReader(confirm).ReadString('\n')
			if answer := strings.TrimSpace(response); answer != "y" && answer != "Y" {
				fmt.Println("Operation cancelled.")

				return nil
			}
		}

		return runner.Drop()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printVersionInfo() {
	fmt.Printf("%s v%s\n", name, Version)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Database Migration Tool for HardbanRecords Lab\n")
}

func printUsage() {
	fmt.Printf(`%s v%s - Database Migration Tool for HardbanRecords Lab

USAGE:
    %s [OPTIONS] COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Rollback the last migration
    status  Show migration status
    version Show current migration version
    drop    Drop all tables (requires confirmation)

OPTIONS:
    --help     Show this help message
    --version  Show version information
    --yes      Do not prompt before drop

ENVIRONMENT VARIABLES:
    DATABASE_URL    PostgreSQL connection string (REQUIRED)

    MIGRATION_TABLE Name of migration tracking table
                    (default: schema_migrations)

EXAMPLES:
    %s up            # Apply all pending migrations
    %s status        # Show current migration status
    %s down          # Rollback last migration
    %s --yes drop    # Drop everything without prompting
`, name, Version, name, name, name, name, name)
}
