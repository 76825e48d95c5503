package directory

import (
	"context"
	"testing"

	"github.com/hospitalops/hospitalops/internal/platform/db"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	sqlDB, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	s := NewSQLiteStore(sqlDB)
	ctx := context.Background()
	for _, a := range []*Actor{
		{ID: "MGR-1", Name: "Ada", Role: RoleManager},
		{ID: "DOC-1", Name: "Ben", Role: "doctor"},
	} {
		if err := s.UpsertActor(ctx, a); err != nil {
			t.Fatalf("UpsertActor: %v", err)
		}
	}
	if err := s.UpsertHospital(ctx, &Hospital{ID: "HOSP-1", Name: "General"}); err != nil {
		t.Fatalf("UpsertHospital: %v", err)
	}
	for _, m := range []*StaffMember{
		{ID: "S-1", Department: "icu", Available: true},
		{ID: "S-2", Department: " ICU ", Available: true},
		{ID: "S-3", Department: "ICU", Available: false},
		{ID: "S-4", Department: "ER", Available: true},
	} {
		if err := s.UpsertStaff(ctx, m); err != nil {
			t.Fatalf("UpsertStaff: %v", err)
		}
	}
	return s
}

func TestFindActorByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.FindActorByID(ctx, "MGR-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == nil || !a.IsManager() {
		t.Fatalf("expected manager, got %+v", a)
	}

	doc, err := s.FindActorByID(ctx, "DOC-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.IsManager() {
		t.Error("doctor must not be a manager")
	}

	missing, err := s.FindActorByID(ctx, "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing actor, got %+v", missing)
	}
	if missing.IsManager() {
		t.Error("nil actor must not be a manager")
	}
}

func TestFindHospitalByID(t *testing.T) {
	s := newTestStore(t)
	h, err := s.FindHospitalByID(context.Background(), "HOSP-1")
	if err != nil || h == nil || h.Name != "General" {
		t.Fatalf("got %+v, %v", h, err)
	}
	h, err = s.FindHospitalByID(context.Background(), "HOSP-X")
	if err != nil || h != nil {
		t.Fatalf("expected nil, nil; got %+v, %v", h, err)
	}
}

func TestFindStaffByIDs_SkipsUnknown(t *testing.T) {
	s := newTestStore(t)
	staff, err := s.FindStaffByIDs(context.Background(), []string{"S-1", "S-4", "S-99"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(staff) != 2 {
		t.Fatalf("expected 2 members, got %d", len(staff))
	}
	if staff[0].ID != "S-1" || staff[0].Department != "ICU" {
		t.Errorf("unexpected first member %+v", staff[0])
	}

	none, err := s.FindStaffByIDs(context.Background(), nil)
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty result, got %v, %v", none, err)
	}
}

func TestFindStaffByDepartment(t *testing.T) {
	s := newTestStore(t)
	staff, err := s.FindStaffByDepartment(context.Background(), "Icu")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(staff) != 3 {
		t.Errorf("expected 3 ICU members, got %d", len(staff))
	}
}

func TestFindAvailableStaff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		dept  string
		limit int
		want  int
	}{
		{"only available members", "icu", 10, 2},
		{"limit applied", "ICU", 1, 1},
		{"zero limit", "ICU", 0, 0},
		{"unknown department", "RADIOLOGY", 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staff, err := s.FindAvailableStaff(ctx, tt.dept, tt.limit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(staff) != tt.want {
				t.Errorf("expected %d, got %d", tt.want, len(staff))
			}
			for _, m := range staff {
				if !m.Available {
					t.Errorf("member %s is not available", m.ID)
				}
			}
		})
	}
}

func TestNormalizeDepartment(t *testing.T) {
	if got := NormalizeDepartment("  emergency "); got != "EMERGENCY" {
		t.Errorf("got %q", got)
	}
}
