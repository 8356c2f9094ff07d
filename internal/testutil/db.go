package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/database"
)

func GetEmptyTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal("Failed to create in memory db")
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	err = database.Migrate(context.Background(), db, "sqlite3")
	if err != nil {
		t.Fatal("Failed to migrate db")
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func EnableIntegrationTest() bool {
	return len(os.Getenv("RUN_INTEGRATION_TEST")) > 0
}
