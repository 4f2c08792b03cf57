package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCreatesTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"api_keys", "batches", "proxy_records", "history_events"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestMigrateSQLiteProxyRecordColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"proxy_string", "host", "port", "user_id", "country_code", "session_id", "batch_id"} {
		if !conn.Migrator().HasColumn("proxy_records", column) {
			t.Fatalf("proxy_records missing column %s", column)
		}
	}
}

func TestMigrateSQLiteProxyStringUnique(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if !conn.Migrator().HasIndex("proxy_records", "idx_proxy_records_proxy_string") {
		t.Fatalf("proxy_records missing unique index on proxy_string")
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost/db", DialectPostgres},
		{"host=localhost user=u dbname=db", DialectPostgres},
		{"file:data/app.db", DialectSQLite},
		{"sqlite://data/app.db", DialectSQLite},
		{"data/app.db", DialectSQLite},
	}
	for _, tc := range cases {
		got, err := detectDialectFromDSN(tc.dsn)
		if err != nil {
			t.Fatalf("detect %q: %v", tc.dsn, err)
		}
		if got != tc.want {
			t.Fatalf("detect %q = %q, want %q", tc.dsn, got, tc.want)
		}
	}
}
