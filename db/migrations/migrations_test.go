package migrations

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// findProjectRoot searches for the project root directory (where go.mod is located)
// starting from the current working directory and moving upwards.
func findProjectRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err, "Failed to get working directory")

	for i := 0; i < 5; i++ { // Limit search to 5 levels up
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		prevWd := wd
		wd = filepath.Dir(wd)
		if wd == prevWd { // Reached the root of the filesystem
			break
		}
	}
	t.Fatalf("Failed to find project root (go.mod)")
	return ""
}

// TestMigrationsNotEmpty ensures that all migration .sql files are not empty.
// This is a basic sanity check to catch accidental empty files.
func TestMigrationsNotEmpty(t *testing.T) {
	rootPath := findProjectRoot(t)
	migrationsPath := filepath.Join(rootPath, "db", "migrations")

	files, err := os.ReadDir(migrationsPath)
	require.NoError(t, err, "Failed to read migrations directory: %s", migrationsPath)

	for _, file := range files {
		fileName := file.Name()
		if strings.HasSuffix(fileName, ".sql") {
			filePath := filepath.Join(migrationsPath, fileName)
			content, err := os.ReadFile(filePath)
			require.NoError(t, err, "Failed to read migration file: %s", filePath)
			require.NotEmpty(t, content, "Migration file is empty: %s", fileName)
		}
	}
}

// TestMigrationFileNames ensures that all migration files follow the
// golang-migrate naming convention "NNNNNN_description.up.sql" with a
// matching .down.sql for every .up.sql.
func TestMigrationFileNames(t *testing.T) {
	rootPath := findProjectRoot(t)
	migrationsPath := filepath.Join(rootPath, "db", "migrations")

	files, err := os.ReadDir(migrationsPath)
	require.NoError(t, err, "Failed to read migrations directory: %s", migrationsPath)

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, file := range files {
		fileName := file.Name()
		if !strings.HasSuffix(fileName, ".sql") {
			continue
		}

		var baseName string
		switch {
		case strings.HasSuffix(fileName, ".up.sql"):
			baseName = strings.TrimSuffix(fileName, ".up.sql")
			ups[baseName] = true
		case strings.HasSuffix(fileName, ".down.sql"):
			baseName = strings.TrimSuffix(fileName, ".down.sql")
			downs[baseName] = true
		default:
			t.Fatalf("File name %q is neither .up.sql nor .down.sql", fileName)
		}

		parts := strings.Split(baseName, "_")
		require.True(t, len(parts) >= 2, "File name %q does not match format NNNNNN_description.up.sql", fileName)

		_, err := strconv.Atoi(parts[0])
		require.NoError(t, err, "File name %q does not start with a number: %v", fileName, err)
	}

	require.NotEmpty(t, ups, "No .up.sql migration files found in %s", migrationsPath)
	for base := range ups {
		require.True(t, downs[base], "Migration %q has no matching .down.sql", base)
	}
	for base := range downs {
		require.True(t, ups[base], "Migration %q has no matching .up.sql", base)
	}
}
