package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
)

// CHExecutor is the subset of the ClickHouse driver connection needed
// to apply migrations.
type CHExecutor interface {
	Exec(ctx context.Context, query string, args ...any) error
}

// RunClickhouse applies all embedded SQL files in lexical order.
// Migrations are expected to be idempotent.
func RunClickhouse(ctx context.Context, db CHExecutor) error {
	files, err := listSQLFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return fmt.Errorf("read embedded clickhouse migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if err := db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
