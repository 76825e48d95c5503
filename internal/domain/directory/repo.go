package directory

import "context"

// Lookups return (nil, nil) when the record does not exist.

type ManagerDirectory interface {
	FindActorByID(ctx context.Context, id string) (*Actor, error)
}

type HospitalDirectory interface {
	FindHospitalByID(ctx context.Context, id string) (*Hospital, error)
}

type StaffDirectory interface {
	// FindStaffByIDs returns the members that exist; unknown ids are skipped.
	FindStaffByIDs(ctx context.Context, ids []string) ([]*StaffMember, error)
	FindStaffByDepartment(ctx context.Context, department string) ([]*StaffMember, error)
	// FindAvailableStaff returns at most limit available members of department.
	FindAvailableStaff(ctx context.Context, department string, limit int) ([]*StaffMember, error)
}

// Directory bundles the three lookups; both store drivers implement it.
type Directory interface {
	ManagerDirectory
	HospitalDirectory
	StaffDirectory
}

// Seeder writes directory records. The capacity engine never calls it; it
// exists for bootstrapping and tests.
type Seeder interface {
	UpsertActor(ctx context.Context, a *Actor) error
	UpsertHospital(ctx context.Context, h *Hospital) error
	UpsertStaff(ctx context.Context, s *StaffMember) error
}

var (
	_ Directory = (*PGStore)(nil)
	_ Seeder    = (*PGStore)(nil)
	_ Directory = (*SQLiteStore)(nil)
	_ Seeder    = (*SQLiteStore)(nil)
)
