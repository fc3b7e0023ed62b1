package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations
var migrationsFS embed.FS

func init() {
	sqlx.BindDriver(DriverSqlite, sqlx.QUESTION)
}

// Open connects with the given driver, retrying while the database comes up,
// and applies pending migrations.
func Open(ctx context.Context, driver, databaseURL string) (*sqlx.DB, error) {
	const maxRetries = 10
	const retryInterval = 2 * time.Second

	dsn := databaseURL
	attempts := maxRetries
	switch driver {
	case DriverSqlite:
		dsn = SqliteDSN(databaseURL)
		attempts = 1
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	var (
		conn *sqlx.DB
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = sqlx.ConnectContext(ctx, driver, dsn)
		if err == nil {
			break
		}
		log.Error().Err(err).
			Int("attempt", attempt).
			Str("driver", driver).
			Msgf("failed to connect to database, retrying in %s", retryInterval)
		if attempt == attempts {
			return nil, fmt.Errorf("could not connect to database after %d attempts: %w", attempts, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	log.Info().Str("driver", driver).Msg("connected to database")

	if err := RunMigrations(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// SqliteDSN turns a file path into a modernc DSN with WAL, a busy timeout,
// foreign keys and immediate write transactions.
func SqliteDSN(p string) string {
	if strings.Contains(p, "_pragma=") {
		return p
	}
	sep := "?"
	if strings.Contains(p, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(p, "file:") {
		p = "file:" + p
	}
	return p + sep + strings.Join([]string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_txlock=immediate",
	}, "&")
}

// RunMigrations executes every embedded "*.up.sql" for the connection's
// dialect, sorted by name, skipping versions already recorded.
func RunMigrations(ctx context.Context, conn *sqlx.DB) error {
	dir := path.Join("migrations", conn.DriverName())
	files, err := fs.Glob(migrationsFS, path.Join(dir, "*.up.sql"))
	if err != nil {
		log.Error().Err(err).Msg("failed to list up migrations")
		return fmt.Errorf("failed to glob migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations for driver %q", conn.DriverName())
	}
	sort.Strings(files)

	if _, err := conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := conn.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, file := range files {
		version := strings.TrimSuffix(path.Base(file), ".up.sql")
		if done[version] {
			continue
		}
		sqlBytes, err := migrationsFS.ReadFile(file)
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("failed to read migration file")
			return fmt.Errorf("could not read migration %q: %w", file, err)
		}
		if err := applyMigration(ctx, conn, version, string(sqlBytes)); err != nil {
			return fmt.Errorf("error executing migration %q: %w", file, err)
		}
		log.Info().Str("version", version).Msg("applied migration")
	}
	return nil
}

func applyMigration(ctx context.Context, conn *sqlx.DB, version, stmt string) error {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, s := range splitStatements(stmt) {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`),
		version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements breaks a migration on ";" line endings and drops
// comment-only lines. Migrations do not contain semicolons inside literals.
func splitStatements(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	var out []string
	for _, part := range strings.Split(src, ";\n") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
