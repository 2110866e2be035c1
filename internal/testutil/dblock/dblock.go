// Package dblock serializes database-backed tests across packages. go test runs
// packages in parallel, and every integration suite truncates the same tables.
package dblock

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
)

const lockAddr = "127.0.0.1:45433"

// Acquire blocks until this process holds the cross-process test lock.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// DatabaseURL loads the repository .env file once and returns DATABASE_URL, or "".
func DatabaseURL() string {
	_ = godotenv.Load("../../.env")
	return os.Getenv("DATABASE_URL")
}

// RequireDatabase skips t when no database is configured.
func RequireDatabase(t testing.TB) string {
	t.Helper()
	url := DatabaseURL()
	if url == "" {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}
	return url
}
