package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/channelsync/backend/internal/infrastructure/config"
	"github.com/channelsync/backend/internal/infrastructure/logger"
	"github.com/channelsync/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUnknownCommand = fmt.Errorf("unknown command")

func main() {
	var (
		migrationsPath = flag.String("path", "", "Path to migrations directory (default: ./migrations)")
		logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		confirm        = flag.Bool("confirm", false, "Confirm destructive commands (drop)")
	)
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      *logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	path, err := resolveMigrationsPath(*migrationsPath)
	if err != nil {
		log.Fatal("Failed to resolve migrations path", zap.Error(err))
	}

	command, commandArgs := args[0], args[1:]
	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", path),
	)

	// create and list work on the files alone.
	switch command {
	case "create":
		runCreate(log, path, commandArgs)
		return
	case "list":
		runList(log, path)
		return
	}

	m, closeAll := openMigrator(log, path)
	defer closeAll()

	if err := runSchemaCommand(m, log, command, commandArgs, *confirm); err != nil {
		if err == errUnknownCommand {
			log.Error("Unknown command", zap.String("command", command))
			printUsage()
			os.Exit(1)
		}
		log.Fatal("Migration command failed", zap.Error(err))
	}
}

// resolveMigrationsPath falls back to ./migrations, then to the directory
// two levels above the binary (the repo root when running a built cmd).
func resolveMigrationsPath(override string) (string, error) {
	path := override
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if execPath, execErr := os.Executable(); execErr == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	return filepath.Abs(path)
}

// openMigrator loads the config, enforces the postgres-only rule and returns
// a connected Migrator plus a combined cleanup func.
func openMigrator(log *zap.Logger, path string) (*migration.Migrator, func()) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// The SQL files target PostgreSQL; sqlite deployments build their
	// schema through gorm at server startup.
	if cfg.Database.Driver != config.DatabaseDriverPostgres {
		log.Fatal("Migration CLI supports the postgres driver only",
			zap.String("driver", cfg.Database.Driver))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	m, err := migration.New(db, path, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}

	return m, func() {
		_ = m.Close()
		_ = db.Close()
	}
}

func runCreate(log *zap.Logger, path string, args []string) {
	if len(args) < 1 {
		log.Fatal("Migration name required. Usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(path, args[0], description)
	if err != nil {
		log.Fatal("Failed to create migration", zap.Error(err))
	}

	log.Info("Migration created successfully",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
}

func runList(log *zap.Logger, path string) {
	migrations, err := migration.ListMigrations(path)
	if err != nil {
		log.Fatal("Failed to list migrations", zap.Error(err))
	}
	if len(migrations) == 0 {
		log.Info("No migrations found")
		return
	}

	log.Info("Available migrations", zap.Int("count", len(migrations)))
	for _, m := range migrations {
		fmt.Println("  -", m)
	}
}

func runSchemaCommand(m *migration.Migrator, log *zap.Logger, command string, args []string, confirm bool) error {
	switch command {
	case "up":
		return m.Up()

	case "down":
		return m.Down()

	case "step":
		if len(args) < 1 {
			return fmt.Errorf("step count required, usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
		} else {
			log.Info("Current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}
		return nil

	case "force":
		if len(args) < 1 {
			return fmt.Errorf("version required, usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version number %q", args[0])
		}
		log.Warn("Forcing migration version - use with caution!")
		return m.Force(version)

	case "drop":
		if !confirm {
			return fmt.Errorf("drop destroys all sync state; re-run as: migrate -confirm drop")
		}
		return m.Drop()

	default:
		return errUnknownCommand
	}
}

func printUsage() {
	fmt.Println(`ChannelSync schema migration tool.

Manages the PostgreSQL schema (connections, sync_jobs + sync_job_items,
audit_log_entries) from the SQL pairs under migrations/.

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current schema version
  force <version>       Overwrite the recorded version (repair a dirty state)
  drop                  Drop all database objects (requires -confirm)
  create <name> [desc]  Scaffold a new up/down SQL pair
  list                  List migration pairs under the migrations path

Flags:
  -path string          Path to migrations directory (default: ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)
  -confirm              Confirm destructive commands

Database settings come from config.toml or CHANNELSYNC_DATABASE_* environment
variables (HOST, PORT, USER, PASSWORD, DBNAME, SSLMODE); the driver must be
postgres.

Examples:
  # Bring a fresh database up to the current schema
  migrate up

  # Roll back the audit_log_entries migration only
  migrate step -1

  # Scaffold the next schema change
  migrate create add_connection_webhooks "Webhook registrations per connection"`)
}
