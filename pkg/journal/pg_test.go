package journal

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/docledger/middleware/pkg/pgutil"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	store := NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	pgutil.AssertTableExists(t, db, "upload_journal")
	return ctx, store
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed journal tests")
}

func confirmedEntry(runID string) *Entry {
	return &Entry{
		RunID:          runID,
		Method:         "uploadDocument",
		Owner:          "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		ContentAddress: "QmConfirmed",
		TxHash:         "0xdeadbeef",
		Stage:          StageConfirmed,
		FeeEther:       decimal.RequireFromString("0.00105"),
		CreatedAt:      time.Now(),
	}
}

func TestRecordAndListOrphaned(t *testing.T) {
	ctx, store := setupStore(t)

	if err := store.Record(ctx, confirmedEntry("run-confirmed")); err != nil {
		t.Fatalf("failed to record confirmed run: %v", err)
	}

	orphan := &Entry{
		RunID:          "run-orphan",
		Method:         "uploadDocument",
		Owner:          "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		ContentAddress: "QmOrphan",
		Stage:          StageEstimate,
		ErrorKind:      "estimation_failed",
		CreatedAt:      time.Now(),
	}
	if err := store.Record(ctx, orphan); err != nil {
		t.Fatalf("failed to record orphaned run: %v", err)
	}

	// A run that failed before storing anything is not an orphan.
	if err := store.Record(ctx, &Entry{
		RunID:     "run-store-failed",
		Method:    "uploadDocument",
		Owner:     "0xcccccccccccccccccccccccccccccccccccccccc",
		Stage:     StageStore,
		ErrorKind: "unreachable",
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("failed to record store failure: %v", err)
	}

	orphans, err := store.ListOrphaned(ctx)
	if err != nil {
		t.Fatalf("failed to list orphans: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}
	got := orphans[0]
	if got.RunID != "run-orphan" || got.ContentAddress != "QmOrphan" {
		t.Fatalf("unexpected orphan %+v", got)
	}
	if !got.Orphaned() {
		t.Fatalf("entry should report itself orphaned")
	}
	if got.ErrorKind != "estimation_failed" {
		t.Fatalf("unexpected error kind %q", got.ErrorKind)
	}
}

func TestRecordRoundTripsFee(t *testing.T) {
	ctx, store := setupStore(t)

	if err := store.Record(ctx, confirmedEntry("run-fee")); err != nil {
		t.Fatalf("failed to record: %v", err)
	}

	var daos []EntryDao
	if err := store.db.NewSelect().Model(&daos).Where("run_id = ?", "run-fee").Scan(ctx); err != nil {
		t.Fatalf("failed to read back entry: %v", err)
	}
	if len(daos) != 1 {
		t.Fatalf("expected 1 row, got %d", len(daos))
	}

	entry := toEntry(&daos[0])
	if !entry.FeeEther.Equal(decimal.RequireFromString("0.00105")) {
		t.Fatalf("fee did not round trip, got %s", entry.FeeEther)
	}
	if entry.Orphaned() {
		t.Fatalf("confirmed run must not be orphaned")
	}
}

func TestRecordRejectsDuplicateRunID(t *testing.T) {
	ctx, store := setupStore(t)

	if err := store.Record(ctx, confirmedEntry("run-dup")); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	if err := store.Record(ctx, confirmedEntry("run-dup")); err == nil {
		t.Fatalf("expected duplicate run_id to be rejected")
	}
}
