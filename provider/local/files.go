package local

import (
	"embed"
	"io/fs"

	"github.com/goliatone/go-accounts"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the local_identities migrations, one directory
// per dialect.
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return migrationsFS
	}
	return sub
}

// Migrations returns the local_identities migration set. Pass it to
// accounts.Migrate next to the profile migrations.
func Migrations() accounts.MigrationSource {
	return accounts.MigrationSource{
		Label: "provider/local/data/sql/migrations",
		FS:    GetMigrationsFS(),
	}
}
