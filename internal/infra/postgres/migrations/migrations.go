package migrations

import (
	"context"
	"embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

var Migrations = migrate.NewMigrations()

// up returns a migration that executes an embedded SQL file.
func up(name string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		query, err := sqlFiles.ReadFile("sql/" + name)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, string(query))
		return err
	}
}

func drop(table string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table)
		return err
	}
}
