package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
)

var logger = logging.NewConsole(logging.LevelInfo).Named("migration")

// migrator is the subset of *migrate.Migrate the commands drive.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Force(version int) error
	Version() (uint, bool, error)
}

type command struct {
	usage string
	// destructive commands drop pick ledger or snapshot history and need
	// MIGRATION_ALLOW_DESTRUCTIVE outside dev
	destructive bool
	run         func(m migrator, args []string) error
}

var commands = map[string]command{
	"up": {
		usage: "up",
		run: func(m migrator, _ []string) error {
			return ignoreNoChange(m.Up())
		},
	},
	"down": {
		usage:       "down [steps]",
		destructive: true,
		run: func(m migrator, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			return ignoreNoChange(m.Steps(-steps))
		},
	},
	"version": {
		usage: "version",
		run: func(m migrator, _ []string) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Info("schema version", "version", "none", "dirty", false)
				return nil
			}
			if err != nil {
				return fmt.Errorf("read version: %w", err)
			}
			logger.Info("schema version", "version", version, "dirty", dirty)
			return nil
		},
	},
	"force": {
		usage: "force <version>",
		run: func(m migrator, args []string) error {
			if len(args) == 0 {
				return errors.New("force requires a version argument")
			}
			version, err := parseVersion(args[0])
			if err != nil {
				return err
			}
			return m.Force(version)
		},
	},
	"goto": {
		usage:       "goto <version>",
		destructive: true,
		run: func(m migrator, args []string) error {
			if len(args) == 0 {
				return errors.New("goto requires a target version argument")
			}
			target, err := parseTarget(args[0])
			if err != nil {
				return err
			}
			return ignoreNoChange(m.Migrate(target))
		},
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	name := strings.ToLower(strings.TrimSpace(os.Args[1]))
	cmd, ok := commands[name]
	if !ok {
		printUsage()
		os.Exit(2)
	}
	if err := checkDestructive(cmd, os.Getenv("APP_ENV"), envBool("MIGRATION_ALLOW_DESTRUCTIVE")); err != nil {
		fatal("refusing to run command", "command", name, "error", err)
	}

	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		fatal("DB_URL is required")
	}
	if envBool("DB_DISABLE_PREPARED_BINARY_RESULT") {
		dbURL = withDisabledBinaryResults(dbURL)
	}

	migrationsDir, err := resolveMigrationsDir()
	if err != nil {
		fatal("resolve migrations dir", "error", err)
	}
	sourceURL := "file://" + filepath.ToSlash(migrationsDir)

	m, err := migrate.New(sourceURL, dbURL)
	if err != nil {
		fatal("create migrator", "error", err)
	}

	runErr := cmd.run(m, os.Args[2:])
	closeMigrator(m)
	if runErr != nil {
		fatal("migration failed", "command", name, "error", runErr)
	}
	logger.Info("migration command finished", "command", name, "source", sourceURL)
}

func fatal(msg string, args ...any) {
	logger.Error(msg, args...)
	_ = logger.Sync()
	os.Exit(1)
}

func checkDestructive(cmd command, appEnv string, allowed bool) error {
	if !cmd.destructive || allowed {
		return nil
	}
	env := strings.ToLower(strings.TrimSpace(appEnv))
	if env == "" || env == "dev" {
		return nil
	}
	return fmt.Errorf("%q can drop settled picks in APP_ENV=%s; set MIGRATION_ALLOW_DESTRUCTIVE=true to proceed", cmd.usage, env)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no migration changes")
		return nil
	}
	return err
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}

	steps, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, fmt.Errorf("invalid down steps %q: %w", args[0], err)
	}
	if steps <= 0 {
		return 0, fmt.Errorf("down steps must be > 0")
	}
	return steps, nil
}

func parseVersion(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	// -1 clears the version table, as golang-migrate allows
	if value < -1 {
		return 0, fmt.Errorf("version must be >= -1")
	}
	return value, nil
}

func parseTarget(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target version %q: %w", raw, err)
	}
	return uint(value), nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil {
		logger.Warn("close migration source", "error", srcErr)
	}
	if dbErr != nil {
		logger.Warn("close migration db", "error", dbErr)
	}
}

func resolveMigrationsDir() (string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("MIGRATIONS_DIR")),
		"./db/migrations",
		"/app/db/migrations",
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}
	return "", fmt.Errorf("migration directory not found (checked MIGRATIONS_DIR, ./db/migrations, /app/db/migrations)")
}

func withDisabledBinaryResults(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return raw
	}

	query := parsed.Query()
	if query.Get("disable_prepared_binary_result") == "" {
		query.Set("disable_prepared_binary_result", "yes")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func envBool(key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && value
}

func printUsage() {
	bin := filepath.Base(os.Args[0])
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(os.Stderr, "usage: %s <%s> [args]\n", bin, strings.Join(names, "|"))
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s %s\n", bin, commands[name].usage)
	}
	fmt.Fprintf(os.Stderr, "example: %s goto 1791331320\n", bin)
}
