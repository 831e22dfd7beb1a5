package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tgsitter/tgsitter/internal/platform"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "tgsitter.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := platform.Profile{ID: 7, Username: "owner", FirstName: "Ada", LastName: "L"}
	if err := s.SaveProfile(ctx, "+15550100_12345", "+15550100", p, true); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	rec, ok, err := s.Get(ctx, "+15550100_12345")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Phone != "+15550100" || rec.ProfileID != 7 || rec.Username != "owner" || !rec.Authorized {
		t.Fatalf("record = %+v", rec)
	}
	if time.Since(rec.UpdatedAt) > time.Minute {
		t.Fatalf("UpdatedAt not set: %v", rec.UpdatedAt)
	}
}

func TestSaveUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := platform.Profile{ID: 7, Username: "owner"}
	s.SaveProfile(ctx, "a_1", "+1", p, true)
	if err := s.SaveProfile(ctx, "a_1", "+1", p, false); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec, _, _ := s.Get(ctx, "a_1")
	if rec.Authorized {
		t.Fatal("second save must overwrite the authorized flag")
	}
	all, err := s.All(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("All = %d records, err=%v", len(all), err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("missing record must report ok=false")
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveProfile(ctx, "a_1", "+1", platform.Profile{ID: 1}, true)
	if err := s.Delete(ctx, "a_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a_1"); ok {
		t.Fatal("deleted record must be gone")
	}
}
