package accounts

import (
	"context"
	"embed"
	"io/fs"

	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// MigrationDialects lists the dialects every migration set must provide.
var MigrationDialects = []string{"postgres", "sqlite"}

// MigrationSource is a migration set with one directory per dialect.
type MigrationSource struct {
	Label string
	FS    fs.FS
}

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return migrationsFS
	}
	return sub
}

// ProfileMigrations returns the profiles table migrations.
func ProfileMigrations() MigrationSource {
	return MigrationSource{
		Label: "data/sql/migrations",
		FS:    GetMigrationsFS(),
	}
}

// RegisterMigrations registers the profile migrations and any extra sets
// with client.
func RegisterMigrations(client *persistence.Client, extra ...MigrationSource) {
	for _, src := range append([]MigrationSource{ProfileMigrations()}, extra...) {
		if src.FS == nil {
			continue
		}
		client.RegisterDialectMigrations(
			src.FS,
			persistence.WithDialectSourceLabel(src.Label),
			persistence.WithValidationTargets(MigrationDialects...),
		)
	}
}

// Migrate registers the profile migrations plus any extra sets, e.g. the
// local provider tables, checks every set covers all dialects and applies
// them.
func Migrate(ctx context.Context, client *persistence.Client, logger Logger, extra ...MigrationSource) error {
	if client == nil {
		return errors.New("migrate requires a persistence client", errors.CategoryBadInput)
	}
	logger = normalizeLogger(logger)

	RegisterMigrations(client, extra...)

	if err := client.ValidateDialects(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "migration dialect validation failed")
	}

	if err := client.Migrate(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to apply migrations")
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		logger.Info("applied migrations", "report", report.String())
		return nil
	}

	logger.Debug("no new migrations to apply")
	return nil
}
