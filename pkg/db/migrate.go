package db

import (
	"os"
	"strings"
)

func MigrateFromFile(database *DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Migrate(database, string(content))
}

// Migrate runs every statement of a schema script, turning CREATE TABLE into
// CREATE TABLE IF NOT EXISTS so it can be applied on every start.
func Migrate(database *DB, schema string) error {
	for _, stmt := range SplitStatements(schema) {
		if _, err := database.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func SplitStatements(schema string) []string {
	schema = strings.ReplaceAll(schema, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ")

	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = stripComments(stmt)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	kept := lines[:0]
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
