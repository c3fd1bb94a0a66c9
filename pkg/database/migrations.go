package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql"
)

// CreateSupportingIndexes creates indexes not expressed by the Ent schema:
// a GIN index over source_metadata for operators filtering queued jobs by
// free-form metadata (filename, url) without a dedicated column.
func CreateSupportingIndexes(ctx context.Context, driver *sql.Driver) error {
	db := driver.DB()

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_jobs_source_metadata_gin
		ON jobs USING gin(source_metadata)`)
	if err != nil {
		return fmt.Errorf("failed to create source_metadata GIN index: %w", err)
	}

	return nil
}
