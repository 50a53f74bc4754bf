package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/frc5024/portguard/internal/domain"
)

func newTestRepo(t *testing.T) *EventRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewEventRepository(dbPath)
	if err != nil {
		t.Fatalf("failed to create SQLite repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func makeEvent(number int, action domain.EventAction, ts time.Time) *domain.AllocationEvent {
	ev := domain.NewAllocationEvent(domain.MustPort(number, domain.ProtocolTCP), action, "test")
	ev.Timestamp = ts
	return ev
}

func TestSaveAndGetEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	event := domain.NewAllocationEvent(domain.MustPort(81, domain.ProtocolUDP), domain.ActionReject, "vision")
	event.Policy = "web"

	if err := repo.SaveEvent(ctx, event); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}
	if event.ID == 0 {
		t.Fatal("expected ID to be set after save")
	}

	got, err := repo.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if got.Port != event.Port {
		t.Errorf("got port %v, want %v", got.Port, event.Port)
	}
	if got.Action != domain.ActionReject || got.Policy != "web" || got.Holder != "vision" {
		t.Errorf("unexpected event fields: %+v", got)
	}
	if !got.Timestamp.Equal(event.Timestamp) {
		t.Errorf("got timestamp %v, want %v", got.Timestamp, event.Timestamp)
	}
}

func TestGetEvent_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetEvent(context.Background(), 42)
	if err != domain.ErrEventNotFound {
		t.Errorf("expected ErrEventNotFound, got %v", err)
	}
}

func TestGetLatestEvent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	_ = repo.SaveEvent(ctx, makeEvent(5800, domain.ActionAllocate, now.Add(-time.Minute)))
	_ = repo.SaveEvent(ctx, makeEvent(5800, domain.ActionRelease, now))
	_ = repo.SaveEvent(ctx, makeEvent(1735, domain.ActionAllocate, now.Add(time.Minute)))

	got, err := repo.GetLatestEvent(ctx, domain.MustPort(5800, domain.ProtocolTCP))
	if err != nil {
		t.Fatalf("GetLatestEvent failed: %v", err)
	}
	if got.Action != domain.ActionRelease {
		t.Errorf("expected latest action release, got %v", got.Action)
	}

	_, err = repo.GetLatestEvent(ctx, domain.MustPort(5800, domain.ProtocolUDP))
	if err != domain.ErrEventNotFound {
		t.Errorf("expected ErrEventNotFound for other protocol, got %v", err)
	}
}

func TestGetEventsInRange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	_ = repo.SaveEvent(ctx, makeEvent(80, domain.ActionAllocate, now.Add(-2*time.Hour)))
	_ = repo.SaveEvent(ctx, makeEvent(443, domain.ActionAllocate, now.Add(-1*time.Hour)))
	_ = repo.SaveEvent(ctx, makeEvent(554, domain.ActionAllocate, now.Add(1*time.Hour)))

	// Only the 443 event falls in [now-90m, now)
	results, err := repo.GetEventsInRange(ctx, now.Add(-90*time.Minute), now)
	if err != nil {
		t.Fatalf("GetEventsInRange failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 event, got %d", len(results))
	}
	if results[0].Port.Number() != 443 {
		t.Errorf("expected port 443, got %v", results[0].Port)
	}
}

func TestGetEventsInRange_HalfOpen(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ts := time.Now()
	_ = repo.SaveEvent(ctx, makeEvent(80, domain.ActionAllocate, ts))

	// start == timestamp: included
	results, err := repo.GetEventsInRange(ctx, ts, ts.Add(time.Second))
	if err != nil {
		t.Fatalf("GetEventsInRange failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result (inclusive start), got %d", len(results))
	}

	// end == timestamp: excluded
	results, err = repo.GetEventsInRange(ctx, ts.Add(-time.Second), ts)
	if err != nil {
		t.Fatalf("GetEventsInRange failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results (exclusive end), got %d", len(results))
	}
}

func TestDeleteOldEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	old := makeEvent(80, domain.ActionAllocate, now.Add(-48*time.Hour))
	recent := makeEvent(80, domain.ActionRelease, now.Add(-1*time.Hour))
	_ = repo.SaveEvent(ctx, old)
	_ = repo.SaveEvent(ctx, recent)

	if err := repo.DeleteOldEvents(ctx, 24*time.Hour); err != nil {
		t.Fatalf("DeleteOldEvents failed: %v", err)
	}

	if _, err := repo.GetEvent(ctx, old.ID); err != domain.ErrEventNotFound {
		t.Errorf("expected old event to be deleted, got err: %v", err)
	}
	if _, err := repo.GetEvent(ctx, recent.ID); err != nil {
		t.Errorf("expected recent event to remain, got err: %v", err)
	}
}
