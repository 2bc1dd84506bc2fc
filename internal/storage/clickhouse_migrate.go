package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/token-gate/internal/logging"
)

// RunClickHouseMigrations executes the SQL files in migrationsPath in
// lexical order. ClickHouse DDL here is idempotent (CREATE TABLE IF NOT
// EXISTS), so re-running is safe.
func RunClickHouseMigrations(ctx context.Context, db *ClickHouseDB, migrationsPath string, logger *logging.Logger) error {
	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	if len(sqlFiles) == 0 {
		logger.WithField("path", migrationsPath).Warn("No ClickHouse migration files found")
		return nil
	}

	for _, filename := range sqlFiles {
		filePath := filepath.Join(migrationsPath, filename)
		content, err := os.ReadFile(filePath) // #nosec G304 - filePath is constructed from trusted migrationsPath
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		statements := splitSQLStatements(string(content))
		for _, stmt := range statements {
			if err := db.Conn().Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %s failed: %w", filename, err)
			}
		}

		logger.WithFields(map[string]interface{}{
			"migration":  filename,
			"statements": len(statements),
		}).Info("Applied ClickHouse migration")
	}

	return nil
}

// splitSQLStatements splits a migration file into individual statements.
// Comment lines are stripped first so a statement preceded by a comment
// still executes.
func splitSQLStatements(content string) []string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}
