package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/verbelo/verbelo/internal/adapters/store"
)

// TestPostgresStoreConformance runs against a live database and is
// skipped unless VERBELO_TEST_POSTGRES_DSN is set.
func TestPostgresStoreConformance(t *testing.T) {
	dsn := os.Getenv("VERBELO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("VERBELO_TEST_POSTGRES_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := store.NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	runStoreConformance(t, s)
}
