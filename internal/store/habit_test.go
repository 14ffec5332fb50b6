package store

import (
	"testing"
	"time"

	"github.com/dukerupert/habits/internal/model"
)

func setupHabitTestDB(t *testing.T) (*HabitStore, *model.User) {
	t.Helper()
	db := setupTestDB(t)
	u, err := NewUserStore(db).Create("owner@example.com", "hash", strPtr("1"))
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return NewHabitStore(db), u
}

func TestHabitCRUD(t *testing.T) {
	hs, owner := setupHabitTestDB(t)

	start := time.Date(2025, 3, 30, 15, 30, 0, 0, time.UTC)
	freq := "m h * * w"

	created, err := hs.Create(model.Habit{
		UserID:     owner.ID,
		Place:      "home",
		Action:     "read a book",
		Time:       &start,
		Reward:     strPtr("tea"),
		Frequency:  &freq,
		DaysOfWeek: []int{5, 1, 3},
		TimeNeeded: 90,
		IsPublic:   true,
	})
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if created.Action != "read a book" {
		t.Errorf("action = %q, want %q", created.Action, "read a book")
	}
	if created.Time == nil || !created.Time.Equal(start) {
		t.Errorf("time = %v, want %v", created.Time, start)
	}
	if created.Reward == nil || *created.Reward != "tea" {
		t.Errorf("reward = %v, want tea", created.Reward)
	}
	if got := created.DaysOfWeek; len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Errorf("days_of_week = %v, want [1 3 5]", got)
	}
	if created.Schedule != "" {
		t.Errorf("schedule = %q, want empty", created.Schedule)
	}
	if !created.IsPublic {
		t.Error("expected public")
	}

	if err := hs.SetSchedule(created.ID, "30 15 * * 1,3,5"); err != nil {
		t.Fatalf("set schedule: %v", err)
	}

	created.Action = "read two books"
	created.DaysOfWeek = []int{0}
	created.IsPublic = false
	updated, err := hs.Update(*created)
	if err != nil {
		t.Fatalf("update habit: %v", err)
	}
	if updated.Action != "read two books" {
		t.Errorf("action = %q, want %q", updated.Action, "read two books")
	}
	if len(updated.DaysOfWeek) != 1 || updated.DaysOfWeek[0] != 0 {
		t.Errorf("days_of_week = %v, want [0]", updated.DaysOfWeek)
	}
	if updated.Schedule != "30 15 * * 1,3,5" {
		t.Errorf("schedule = %q, want it kept across update", updated.Schedule)
	}
	if updated.IsPublic {
		t.Error("expected private after update")
	}

	if err := hs.Delete(created.ID); err != nil {
		t.Fatalf("delete habit: %v", err)
	}
	got, err := hs.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestHabitGetMissing(t *testing.T) {
	hs, _ := setupHabitTestDB(t)

	got, err := hs.GetByID(404)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestHabitRelatedSetNullOnDelete(t *testing.T) {
	hs, owner := setupHabitTestDB(t)

	pleasant, err := hs.Create(model.Habit{UserID: owner.ID, Place: "sofa", Action: "rest", IsPleasant: true, TimeNeeded: 60})
	if err != nil {
		t.Fatalf("create pleasant: %v", err)
	}
	start := time.Date(2025, 3, 30, 8, 0, 0, 0, time.UTC)
	freq := "m h * * *"
	useful, err := hs.Create(model.Habit{
		UserID: owner.ID, Place: "park", Action: "run", Time: &start,
		RelatedHabitID: &pleasant.ID, Frequency: &freq, TimeNeeded: 120,
	})
	if err != nil {
		t.Fatalf("create useful: %v", err)
	}
	if useful.RelatedHabitID == nil || *useful.RelatedHabitID != pleasant.ID {
		t.Fatalf("related = %v, want %d", useful.RelatedHabitID, pleasant.ID)
	}

	if err := hs.Delete(pleasant.ID); err != nil {
		t.Fatalf("delete pleasant: %v", err)
	}
	got, _ := hs.GetByID(useful.ID)
	if got.RelatedHabitID != nil {
		t.Errorf("related = %v, want nil after delete", *got.RelatedHabitID)
	}
}

func TestHabitCountReferencing(t *testing.T) {
	s, user := setupHabitTestDB(t)

	bath, err := s.Create(model.Habit{UserID: user.ID, Place: "home", Action: "bath", IsPleasant: true, TimeNeeded: 60})
	if err != nil {
		t.Fatalf("create pleasant: %v", err)
	}
	n, err := s.CountReferencing(bath.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	for i := 0; i < 2; i++ {
		if _, err := s.Create(model.Habit{UserID: user.ID, Place: "park", Action: "run", RelatedHabitID: &bath.ID, TimeNeeded: 60}); err != nil {
			t.Fatalf("create useful: %v", err)
		}
	}
	n, _ = s.CountReferencing(bath.ID)
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestHabitListByUserPaginates(t *testing.T) {
	hs, owner := setupHabitTestDB(t)

	for i := 0; i < 7; i++ {
		if _, err := hs.Create(model.Habit{UserID: owner.ID, Place: "p", Action: "a", IsPleasant: true, TimeNeeded: 10}); err != nil {
			t.Fatalf("create habit %d: %v", i, err)
		}
	}

	count, err := hs.CountByUser(owner.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}

	first, err := hs.ListByUser(owner.ID, 5, 0)
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first) != 5 {
		t.Errorf("first page len = %d, want 5", len(first))
	}
	second, err := hs.ListByUser(owner.ID, 5, 5)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second) != 2 {
		t.Errorf("second page len = %d, want 2", len(second))
	}
	if second[0].ID <= first[4].ID {
		t.Errorf("pages out of order: %d after %d", second[0].ID, first[4].ID)
	}

	other, err := hs.ListByUser(owner.ID+1, 5, 0)
	if err != nil {
		t.Fatalf("list other user: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other user len = %d, want 0", len(other))
	}
}

func TestHabitListPublic(t *testing.T) {
	hs, owner := setupHabitTestDB(t)

	hs.Create(model.Habit{UserID: owner.ID, Place: "p", Action: "private", IsPleasant: true, TimeNeeded: 10})
	hs.Create(model.Habit{UserID: owner.ID, Place: "p", Action: "shared", IsPleasant: true, TimeNeeded: 10, IsPublic: true})

	public, err := hs.ListPublic()
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if len(public) != 1 {
		t.Fatalf("len = %d, want 1", len(public))
	}
	if public[0].Action != "shared" {
		t.Errorf("action = %q, want %q", public[0].Action, "shared")
	}
}

func TestHabitDeletedWithOwner(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	hs := NewHabitStore(db)

	u, _ := us.Create("gone@example.com", "hash", nil)
	h, err := hs.Create(model.Habit{UserID: u.ID, Place: "p", Action: "a", IsPleasant: true, TimeNeeded: 10})
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}
	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	got, _ := hs.GetByID(h.ID)
	if got != nil {
		t.Error("expected habit to be removed with its owner")
	}
}
