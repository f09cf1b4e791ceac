package identity

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sakif/campus-forum/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger)
}

func testUser(studentID, nickname string) *model.User {
	return &model.User{
		ID:        "id-" + studentID,
		Kind:      model.KindStudent,
		StudentID: studentID,
		Nickname:  nickname,
	}
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUpsert_InstallsNewRecord(t *testing.T) {
	store := newTestStore(t)
	u := testUser("20250001", "alice")

	canonical := store.Upsert(u)
	if canonical != u {
		t.Error("Upsert() should return the argument when no record exists")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestUpsert_FirstRecordWins(t *testing.T) {
	store := newTestStore(t)
	first := testUser("20250001", "alice")
	second := testUser("20250001", "impostor")

	store.Upsert(first)
	canonical := store.Upsert(second)

	if canonical != first {
		t.Error("Upsert() should keep the existing record as canonical")
	}
	if canonical == second {
		t.Error("Upsert() must not replace the canonical record")
	}

	got, ok := store.Get("20250001")
	if !ok || got.Nickname != "alice" {
		t.Errorf("Get() = %v, want the first record (alice)", got)
	}
}

func TestUpsert_NilAndBlankKey(t *testing.T) {
	store := newTestStore(t)

	if store.Upsert(nil) != nil {
		t.Error("Upsert(nil) should return nil")
	}
	if store.Upsert(&model.User{}) != nil {
		t.Error("Upsert() with a blank student id should return nil")
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

// =========================================================================
// NOTIFICATION ROUTING TESTS
// =========================================================================

// A caller holding a stale copy of a user must never receive writes meant
// for the identity. Deliveries key by student id and land on the canonical
// record; the stale copy stays empty.
func TestApplyNotification_TargetsCanonicalRecord(t *testing.T) {
	store := newTestStore(t)
	canonical := testUser("20250001", "alice")
	staleCopy := testUser("20250001", "alice")

	store.Upsert(canonical)
	store.Upsert(staleCopy) // rejected — canonical stays

	ok := store.ApplyNotification("20250001", model.NewNotification("新评论提醒", "hello"))
	if !ok {
		t.Fatal("ApplyNotification() = false, want true")
	}

	if canonical.NotificationCount() != 1 {
		t.Errorf("canonical record has %d notifications, want 1", canonical.NotificationCount())
	}
	if staleCopy.NotificationCount() != 0 {
		t.Errorf("stale copy has %d notifications, want 0", staleCopy.NotificationCount())
	}
}

func TestApplyNotification_UnknownRecipient(t *testing.T) {
	store := newTestStore(t)

	if store.ApplyNotification("nobody", model.NewNotification("t", "c")) {
		t.Error("ApplyNotification() should return false for an unknown student id")
	}
}

func TestApplyNotification_NilNotification(t *testing.T) {
	store := newTestStore(t)
	store.Upsert(testUser("20250001", "alice"))

	if store.ApplyNotification("20250001", nil) {
		t.Error("ApplyNotification(nil) should return false")
	}
}

// =========================================================================
// APPLY MUTATION TESTS
// =========================================================================

func TestApplyMutation(t *testing.T) {
	store := newTestStore(t)
	store.Upsert(testUser("20250001", "alice"))

	ok := store.ApplyMutation("20250001", func(u *model.User) {
		u.Nickname = "alice2"
	})
	if !ok {
		t.Fatal("ApplyMutation() = false, want true")
	}

	got, _ := store.Get("20250001")
	if got.Nickname != "alice2" {
		t.Errorf("Nickname = %q, want %q", got.Nickname, "alice2")
	}
}

func TestApplyMutation_UnknownKey(t *testing.T) {
	store := newTestStore(t)

	called := false
	if store.ApplyMutation("nobody", func(*model.User) { called = true }) {
		t.Error("ApplyMutation() should return false for an unknown student id")
	}
	if called {
		t.Error("mutation fn must not run for an unknown student id")
	}
}

// =========================================================================
// LOAD TESTS
// =========================================================================

// Load resolves duplicates the opposite way from Upsert: the persisted file
// is the source of truth at startup, so the LAST entry wins.
func TestLoad_LastWriteWins(t *testing.T) {
	store := newTestStore(t)

	store.Load([]*model.User{
		testUser("20250001", "old"),
		testUser("20250002", "bob"),
		testUser("20250001", "new"),
	})

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	got, _ := store.Get("20250001")
	if got.Nickname != "new" {
		t.Errorf("Nickname = %q, want the later entry %q", got.Nickname, "new")
	}
}

func TestLoad_SkipsInvalidEntries(t *testing.T) {
	store := newTestStore(t)

	store.Load([]*model.User{nil, {Nickname: "no key"}, testUser("20250001", "alice")})

	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

// =========================================================================
// CONCURRENCY TEST
// =========================================================================

// Many goroutines racing to install and notify the same identity must end
// with one canonical record holding every delivered notification.
func TestConcurrentUpsertAndNotify(t *testing.T) {
	store := newTestStore(t)
	const goroutines = 32

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Upsert(testUser("20250001", "racer"))
			store.ApplyNotification("20250001",
				model.NewNotification("t", fmt.Sprintf("message %d", i)))
		}(i)
	}
	wg.Wait()

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 canonical record", store.Len())
	}
	got, _ := store.Get("20250001")
	if got.NotificationCount() != goroutines {
		t.Errorf("NotificationCount() = %d, want %d", got.NotificationCount(), goroutines)
	}
}

// All hands its snapshot to persistence workers, so the records must be
// detached: a delivery landing after the snapshot may not bleed into it,
// and scribbling on a snapshot record must not reach the canonical one.
func TestAll_ReturnsDetachedSnapshots(t *testing.T) {
	store := newTestStore(t)
	store.Upsert(testUser("20250001", "alice"))
	store.ApplyNotification("20250001", model.NewNotification("新评论提醒", "第一条"))

	snapshot := store.All()

	store.ApplyNotification("20250001", model.NewNotification("新回复提醒", "第二条"))
	snapshot[0].Nickname = "mallory"

	if snapshot[0].NotificationCount() != 1 {
		t.Errorf("snapshot NotificationCount() = %d, want 1 (delivery landed after the snapshot)",
			snapshot[0].NotificationCount())
	}
	canonical, _ := store.Get("20250001")
	if canonical.Nickname != "alice" {
		t.Errorf("canonical Nickname = %q, want %q untouched by snapshot writes", canonical.Nickname, "alice")
	}
	if canonical.NotificationCount() != 2 {
		t.Errorf("canonical NotificationCount() = %d, want 2", canonical.NotificationCount())
	}
}
