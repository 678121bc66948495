package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestMigrationSourceStartsAtInit(t *testing.T) {
	src, err := migrationSource()
	if err != nil {
		t.Fatalf("migrationSource: %v", err)
	}
	defer src.Close()

	first, err := src.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if first != 1 {
		t.Fatalf("first version = %d, want 1", first)
	}
	if _, err := src.Next(first); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a single migration, Next returned %v", err)
	}

	body, ident, err := src.ReadUp(first)
	if err != nil {
		t.Fatalf("ReadUp: %v", err)
	}
	defer body.Close()
	if ident != "init" {
		t.Fatalf("identifier = %q, want init", ident)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, table := range []string{"endpoints", "pings", "price_history", "categories"} {
		if !strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Fatalf("migration does not create %s", table)
		}
	}
}

func TestMigrateRequiresPool(t *testing.T) {
	if err := Migrate(context.Background(), nil, zerolog.Nop()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Migrate(nil) = %v, want ErrNotConfigured", err)
	}
}

func TestMigrateLogger(t *testing.T) {
	var buf bytes.Buffer
	l := migrateLogger{logger: zerolog.New(&buf).Level(zerolog.InfoLevel)}
	if l.Verbose() {
		t.Fatal("info level must not enable verbose migrate output")
	}
	l.Printf("1/u %s (%dms)\n", "init", 12)
	if !strings.Contains(buf.String(), "1/u init (12ms)") {
		t.Fatalf("unexpected log output %q", buf.String())
	}

	debug := migrateLogger{logger: zerolog.New(io.Discard).Level(zerolog.DebugLevel)}
	if !debug.Verbose() {
		t.Fatal("debug level must enable verbose migrate output")
	}
}
