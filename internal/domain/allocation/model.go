package allocation

import "time"

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusPending  Status = "PENDING"
)

// Flow and utilization classifications.
const (
	LevelNormal   = "NORMAL"
	LevelHigh     = "HIGH"
	LevelCritical = "CRITICAL"
)

const (
	ResourceBeds = "BEDS"
	// SourceExternalProcurement is the suggestion source used when no
	// department can donate capacity.
	SourceExternalProcurement = "EXTERNAL_PROCUREMENT"
)

// ResourcePool is the configured capacity of one department.
type ResourcePool struct {
	Department     string    `db:"department" json:"department"`
	BedCount       int       `db:"bed_count" json:"bed_count"`
	Equipment      []string  `db:"equipment" json:"equipment"`
	TotalStaff     int       `db:"total_staff" json:"total_staff"`
	AvailableStaff int       `db:"available_staff" json:"available_staff"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Allocation is one assignment of staff, beds and equipment to a department.
type Allocation struct {
	ID         string    `db:"id" json:"id"`
	ManagerID  string    `db:"manager_id" json:"manager_id"`
	HospitalID string    `db:"hospital_id" json:"hospital_id"`
	Department string    `db:"department" json:"department"`
	StaffIDs   []string  `db:"staff_ids" json:"staff_ids"`
	BedCount   int       `db:"bed_count" json:"bed_count"`
	Equipment  []string  `db:"equipment" json:"equipment"`
	Status     Status    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Patch carries the fields of a partial allocation update. Nil fields are
// left untouched.
type Patch struct {
	StaffIDs  *[]string
	BedCount  *int
	Equipment *[]string
}

// AllocateRequest is the input of Service.Allocate. BedCount stays a float so
// fractional input can be rejected instead of truncated.
type AllocateRequest struct {
	HospitalID string   `json:"hospital_id"`
	Department string   `json:"department"`
	StaffIDs   []string `json:"staff_ids"`
	BedCount   float64  `json:"bed_count"`
	Equipment  []string `json:"equipment"`
}

type ReallocateRequest struct {
	StaffIDs  *[]string `json:"staff_ids,omitempty"`
	BedCount  *float64  `json:"bed_count,omitempty"`
	Equipment *[]string `json:"equipment,omitempty"`
}

func (r ReallocateRequest) Empty() bool {
	return r.StaffIDs == nil && r.BedCount == nil && r.Equipment == nil
}

// AllocateResult is the committed allocation plus whether backup staff
// replaced requested members from other departments.
type AllocateResult struct {
	*Allocation
	BackupUsed bool `json:"backup_used"`
}

type DepartmentFlow struct {
	Department   string `json:"department"`
	CurrentStaff int    `json:"current_staff"`
	CurrentBeds  int    `json:"current_beds"`
	FlowStatus   string `json:"flow_status"`
}

type FlowAnalysis struct {
	ManagerID   string           `json:"manager_id"`
	CollectedAt time.Time        `json:"collected_at"`
	Departments []DepartmentFlow `json:"flow_analysis"`
}

type DepartmentUtilization struct {
	Department      string  `json:"department"`
	TotalBeds       int     `json:"total_beds"`
	AllocatedBeds   int     `json:"allocated_beds"`
	AvailableBeds   int     `json:"available_beds"`
	UtilizationRate float64 `json:"utilization_rate"`
	Status          string  `json:"status"`
}

type UtilizationReport struct {
	ManagerID   string                  `json:"manager_id"`
	CollectedAt time.Time               `json:"collected_at"`
	Departments []DepartmentUtilization `json:"utilization"`
}

type ShortageReport struct {
	Department         string  `json:"department"`
	ShortageType       string  `json:"shortage_type"`
	Severity           string  `json:"severity"`
	Required           int     `json:"required"`
	CurrentUtilization float64 `json:"current_utilization"`
	Message            string  `json:"message"`
}

type ShortageSummary struct {
	HasShortages  bool             `json:"has_shortages"`
	ShortageCount int              `json:"shortage_count"`
	Shortages     []ShortageReport `json:"shortages"`
	Alert         string           `json:"alert"`
}

type Suggestion struct {
	SuggestionID string `json:"suggestion_id"`
	From         string `json:"from"`
	To           string `json:"to"`
	ResourceType string `json:"resource_type"`
	Quantity     int    `json:"quantity"`
	Priority     string `json:"priority"`
	Reason       string `json:"reason"`
}

type SuggestionResult struct {
	Suggestions      []Suggestion `json:"suggestions"`
	TotalSuggestions int          `json:"total_suggestions"`
	Message          string       `json:"message,omitempty"`
}
