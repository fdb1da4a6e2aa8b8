package db

import (
	"embed"
	"fmt"
	"net/http"

	migrate "github.com/rubenv/sql-migrate"
)

const MigrationsTableName = "payout_migrations"

// Migrate applies the embedded schema migrations to the database at dbURL, moving at most count steps in the given
// direction. A count of 0 applies every pending migration.
func Migrate(dbURL string, dir migrate.MigrationDirection, count int, migrationFiles embed.FS) (int, error) {
	dbConnectionPool, err := OpenDBConnectionPool(dbURL)
	if err != nil {
		return 0, fmt.Errorf("connecting to the database: %w", err)
	}
	defer dbConnectionPool.Close()

	ms := migrate.MigrationSet{
		TableName: MigrationsTableName,
	}

	m := migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(migrationFiles)}
	return ms.ExecMax(dbConnectionPool.SqlDB(), dbConnectionPool.DriverName(), m, dir, count)
}
