package db

import "embed"

// MigrationFS embeds SQL migration files per dialect from internal/db/migrations.
// Used by the migrate runner (cmd/migrate and server startup) to apply migrations.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var MigrationFS embed.FS
