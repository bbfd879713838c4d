package database

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"gorm.io/gorm"

	"bullbear/internal/config"
	"bullbear/internal/logger"
	"bullbear/internal/models"
)

func TestConfig(t *testing.T) {
	c := NewConfig(&config.Config{
		DBDriver: "postgres", DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable",
	})

	if got, want := c.DSN(), "host=db port=5432 user=u password=p dbname=n sslmode=disable"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	if got, want := c.URL(), "postgres://u:p@db:5432/n?sslmode=disable"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	c.Driver = "mysql"
	if err := c.Validate(); err == nil {
		t.Error("expected error for unsupported driver")
	}

	c.Driver = DriverSQLite
	c.SQLitePath = ""
	if err := c.Validate(); err == nil {
		t.Error("expected error for sqlite without a path")
	}
}

func TestManager_SQLite(t *testing.T) {
	logger.Init("test")

	m, err := NewManager(&Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "bullbear.db")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if !m.DB().Migrator().HasTable("portfolios") {
		t.Error("expected portfolios table after migration")
	}
	if !m.DB().Migrator().HasTable("decision_records") {
		t.Error("expected decision_records table after migration")
	}
}

var (
	createTableRe = regexp.MustCompile(`(?s)CREATE TABLE (\w+) \((.*?)\n\);`)
	columnLineRe  = regexp.MustCompile(`^\s*([a-z_]+)\s+[A-Z]`)
)

// migrationColumns returns the column names of every table the postgres
// migration creates.
func migrationColumns(t *testing.T) map[string][]string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000001_init.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	tables := map[string][]string{}
	for _, m := range createTableRe.FindAllStringSubmatch(string(raw), -1) {
		for _, line := range strings.Split(m[2], "\n") {
			if c := columnLineRe.FindStringSubmatch(line); c != nil {
				tables[m[1]] = append(tables[m[1]], c[1])
			}
		}
		sort.Strings(tables[m[1]])
	}
	return tables
}

func TestMigrationMatchesModels(t *testing.T) {
	logger.Init("test")

	m, err := NewManager(&Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "schema.db")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer func() { _ = m.Close() }()
	if err := m.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	sqlTables := migrationColumns(t)
	if len(sqlTables) != len(models.All()) {
		t.Errorf("migration creates %d tables, models define %d", len(sqlTables), len(models.All()))
	}

	for _, model := range models.All() {
		stmt := &gorm.Statement{DB: m.DB()}
		if err := stmt.Parse(model); err != nil {
			t.Fatalf("parse %T: %v", model, err)
		}
		table := stmt.Schema.Table

		t.Run(table, func(t *testing.T) {
			want, ok := sqlTables[table]
			if !ok {
				t.Fatalf("migration has no table %s", table)
			}

			cols, err := m.DB().Migrator().ColumnTypes(model)
			if err != nil {
				t.Fatalf("ColumnTypes: %v", err)
			}
			got := make([]string, 0, len(cols))
			for _, c := range cols {
				got = append(got, c.Name())
			}
			sort.Strings(got)

			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("column mismatch for %s\nmodel:     %v\nmigration: %v", table, got, want)
			}
		})
	}
}
