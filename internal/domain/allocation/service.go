package allocation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hospitalops/hospitalops/internal/domain/directory"
	"github.com/hospitalops/hospitalops/internal/platform/audit"
	"github.com/hospitalops/hospitalops/internal/platform/telemetry"
)

type AuditSink interface {
	Append(ctx context.Context, actorID, action, target string, details map[string]interface{}) error
}

type Notifier interface {
	NotifyDepartment(ctx context.Context, department, message string) error
	NotifyStaff(ctx context.Context, staffIDs []string, message string) error
}

// IDSource generates opaque identifiers for allocations and suggestions.
type IDSource func() string

// NewID returns an upper-case random UUID.
func NewID() string {
	return strings.ToUpper(uuid.New().String())
}

// Dashboard is the landing view of a manager.
type Dashboard struct {
	ManagerID        string   `json:"manager_id"`
	AvailableActions []string `json:"available_actions"`
}

var dashboardActions = []string{
	"View Patient Flow Analysis",
	"View Department Utilization",
	"Detect Shortages",
	"Allocate Resources",
	"Reallocate Resources",
}

const (
	alertShortage   = "Resource shortage detected - immediate action required"
	alertNoShortage = "No shortages detected"
	msgNoReallocate = "No reallocation needed - all departments operating normally"
)

// Deps are the collaborators of the capacity engine.
type Deps struct {
	Managers    directory.ManagerDirectory
	Hospitals   directory.HospitalDirectory
	Staff       directory.StaffDirectory
	Pools       PoolRepository
	Allocations AllocationRepository
	Tx          TxRunner
	Audit       AuditSink
	Notifier    Notifier
}

type Service struct {
	managers    directory.ManagerDirectory
	hospitals   directory.HospitalDirectory
	staff       directory.StaffDirectory
	pools       PoolRepository
	allocations AllocationRepository
	tx          TxRunner
	audit       AuditSink
	notifier    Notifier

	thresholds Thresholds
	newID      IDSource
	now        func() time.Time
	logger     zerolog.Logger
	metrics    *telemetry.Provider
}

func NewService(d Deps) *Service {
	return &Service{
		managers:    d.Managers,
		hospitals:   d.Hospitals,
		staff:       d.Staff,
		pools:       d.Pools,
		allocations: d.Allocations,
		tx:          d.Tx,
		audit:       d.Audit,
		notifier:    d.Notifier,
		thresholds:  DefaultThresholds(),
		newID:       NewID,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      zerolog.Nop(),
	}
}

func (s *Service) SetThresholds(t Thresholds) { s.thresholds = t }
func (s *Service) SetIDSource(fn IDSource) { s.newID = fn }
func (s *Service) SetClock(fn func() time.Time) { s.now = fn }
func (s *Service) SetMetrics(m *telemetry.Provider) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l.With().Str("component", "allocation").Logger() }
func (s *Service) Thresholds() Thresholds { return s.thresholds }

func (s *Service) authorizeManager(ctx context.Context, managerID string) (*directory.Actor, error) {
	actor, err := s.managers.FindActorByID(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("find manager: %w", err)
	}
	if !actor.IsManager() {
		return nil, notFound(ResourceManager)
	}
	return actor, nil
}

func (s *Service) Dashboard(ctx context.Context, managerID string) (*Dashboard, error) {
	managerID = directory.NormalizeID(managerID)
	if _, err := s.authorizeManager(ctx, managerID); err != nil {
		return nil, err
	}
	return &Dashboard{ManagerID: managerID, AvailableActions: dashboardActions}, nil
}

// AnalyzeFlow sums staff and beds across all allocations per department.
func (s *Service) AnalyzeFlow(ctx context.Context, managerID string) (*FlowAnalysis, error) {
	managerID = directory.NormalizeID(managerID)
	if _, err := s.authorizeManager(ctx, managerID); err != nil {
		return nil, err
	}
	allocs, err := s.allocations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return &FlowAnalysis{
		ManagerID:   managerID,
		CollectedAt: s.now(),
		Departments: summarizeFlow(allocs, s.thresholds),
	}, nil
}

// AnalyzeUtilization compares allocated beds with each department's pool.
func (s *Service) AnalyzeUtilization(ctx context.Context, managerID string) (*UtilizationReport, error) {
	managerID = directory.NormalizeID(managerID)
	if _, err := s.authorizeManager(ctx, managerID); err != nil {
		return nil, err
	}
	util, err := s.utilization(ctx)
	if err != nil {
		return nil, err
	}
	return &UtilizationReport{ManagerID: managerID, CollectedAt: s.now(), Departments: util}, nil
}

func (s *Service) utilization(ctx context.Context) ([]DepartmentUtilization, error) {
	pools, err := s.pools.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resource pools: %w", err)
	}
	allocs, err := s.allocations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	util := measureUtilization(pools, allocs, s.thresholds)
	for _, d := range util {
		s.metrics.UtilizationObserved(d.Department, d.UtilizationRate)
	}
	return util, nil
}

// DetectShortages reports departments above the critical utilization
// threshold and records one audit entry when any exist.
func (s *Service) DetectShortages(ctx context.Context, managerID string) (*ShortageSummary, error) {
	managerID = directory.NormalizeID(managerID)
	if _, err := s.authorizeManager(ctx, managerID); err != nil {
		return nil, err
	}
	util, err := s.utilization(ctx)
	if err != nil {
		return nil, err
	}
	return s.detect(ctx, managerID, util), nil
}

func (s *Service) detect(ctx context.Context, managerID string, util []DepartmentUtilization) *ShortageSummary {
	shortages := findShortages(util, s.thresholds)
	summary := &ShortageSummary{
		HasShortages:  len(shortages) > 0,
		ShortageCount: len(shortages),
		Shortages:     shortages,
		Alert:         alertNoShortage,
	}
	if !summary.HasShortages {
		return summary
	}

	summary.Alert = alertShortage
	for _, sh := range shortages {
		s.metrics.ShortageDetected(sh.Severity)
	}
	s.record(ctx, managerID, audit.ActionShortageDetected, audit.TargetResourceAllocation,
		map[string]interface{}{"shortages": shortages})
	return summary
}

// SuggestReallocation proposes a donor for every shortage. Nothing is
// committed.
func (s *Service) SuggestReallocation(ctx context.Context, managerID string) (*SuggestionResult, error) {
	managerID = directory.NormalizeID(managerID)
	if _, err := s.authorizeManager(ctx, managerID); err != nil {
		return nil, err
	}
	util, err := s.utilization(ctx)
	if err != nil {
		return nil, err
	}
	summary := s.detect(ctx, managerID, util)
	if !summary.HasShortages {
		return &SuggestionResult{Suggestions: []Suggestion{}, Message: msgNoReallocate}, nil
	}

	suggestions := buildSuggestions(summary.Shortages, util, s.thresholds, s.newID)
	return &SuggestionResult{Suggestions: suggestions, TotalSuggestions: len(suggestions)}, nil
}

// Allocate commits staff, beds and equipment to a department. Requested staff
// from other departments are replaced by available staff of the target
// department.
func (s *Service) Allocate(ctx context.Context, managerID string, req AllocateRequest) (*AllocateResult, error) {
	managerID = directory.NormalizeID(managerID)
	if _, err := s.authorizeManager(ctx, managerID); err != nil {
		return nil, err
	}
	hospital, err := s.hospitals.FindHospitalByID(ctx, req.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("find hospital: %w", err)
	}
	if hospital == nil {
		return nil, notFound(ResourceHospital)
	}
	if err := ValidateAllocation(req.Department, req.BedCount); err != nil {
		return nil, err
	}

	dept := directory.NormalizeDepartment(req.Department)
	staffIDs, backupUsed, err := s.resolveStaff(ctx, dept, req.StaffIDs)
	if err != nil {
		return nil, err
	}

	equipment := req.Equipment
	if equipment == nil {
		equipment = []string{}
	}
	now := s.now()
	a := &Allocation{
		ID:         s.newID(),
		ManagerID:  managerID,
		HospitalID: hospital.ID,
		Department: dept,
		StaffIDs:   staffIDs,
		BedCount:   int(req.BedCount),
		Equipment:  equipment,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.pools.Upsert(ctx, dept, a.BedCount, a.Equipment); err != nil {
			return fmt.Errorf("upsert resource pool %s: %w", dept, err)
		}
		if err := s.allocations.Create(ctx, a); err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AllocationCommitted(dept, backupUsed)

	s.record(ctx, managerID, audit.ActionResourceAllocated, a.ID, map[string]interface{}{
		"department":        dept,
		"staff_count":       len(staffIDs),
		"bed_count":         a.BedCount,
		"equipment_count":   len(equipment),
		"backup_staff_used": backupUsed,
	})
	s.notifyDepartment(ctx, a.ID, dept,
		fmt.Sprintf("Resource allocation completed: %d staff, %d beds assigned", len(staffIDs), a.BedCount))
	s.notifyStaff(ctx, a.ID, staffIDs,
		fmt.Sprintf("You have been assigned to %s - check your updated schedule", dept))

	return &AllocateResult{Allocation: a, BackupUsed: backupUsed}, nil
}

// resolveStaff checks that every requested id exists and swaps members of
// other departments for available staff of dept. Fewer replacements than
// mismatches shortens the list.
func (s *Service) resolveStaff(ctx context.Context, dept string, ids []string) ([]string, bool, error) {
	if len(ids) == 0 {
		return []string{}, false, nil
	}
	members, err := s.staff.FindStaffByIDs(ctx, ids)
	if err != nil {
		return nil, false, fmt.Errorf("find staff: %w", err)
	}
	if len(members) != len(ids) {
		return nil, false, invalid("One or more staff IDs are invalid")
	}

	matched := make([]string, 0, len(members))
	mismatched := 0
	for _, m := range members {
		if directory.NormalizeDepartment(m.Department) == dept {
			matched = append(matched, m.ID)
		} else {
			mismatched++
		}
	}
	if mismatched == 0 {
		return ids, false, nil
	}

	// Ask for enough rows to skip members already requested.
	backups, err := s.staff.FindAvailableStaff(ctx, dept, mismatched+len(matched))
	if err != nil {
		return nil, false, fmt.Errorf("find available staff: %w", err)
	}
	taken := make(map[string]bool, len(matched))
	for _, id := range matched {
		taken[id] = true
	}
	final := matched
	for _, b := range backups {
		if len(final)-len(matched) == mismatched {
			break
		}
		if taken[b.ID] {
			continue
		}
		taken[b.ID] = true
		final = append(final, b.ID)
	}
	return final, true, nil
}

// Reallocate applies a partial update to an allocation. Staff are not checked
// against the allocation's department.
func (s *Service) Reallocate(ctx context.Context, managerID, allocationID string, req ReallocateRequest) (*Allocation, error) {
	managerID = directory.NormalizeID(managerID)
	if _, err := s.authorizeManager(ctx, managerID); err != nil {
		return nil, err
	}
	existing, err := s.allocations.GetByID(ctx, allocationID)
	if err != nil {
		return nil, fmt.Errorf("get allocation: %w", err)
	}
	if existing == nil {
		return nil, notFound(ResourceAllocation)
	}
	if err := ValidateReallocation(req.StaffIDs, req.BedCount); err != nil {
		return nil, err
	}

	patch, changes := buildPatch(req)
	updated, err := s.allocations.Update(ctx, allocationID, patch)
	if err != nil {
		return nil, fmt.Errorf("update allocation: %w", err)
	}
	if updated == nil {
		return nil, notFound(ResourceAllocation)
	}
	s.metrics.ReallocationApplied()

	s.record(ctx, managerID, audit.ActionResourceReallocated, allocationID, changes)
	s.notifyDepartment(ctx, allocationID, existing.Department, "Resource allocation updated")
	if req.StaffIDs != nil {
		s.notifyStaff(ctx, allocationID, *req.StaffIDs, "Your assignment has been updated")
	}
	return updated, nil
}

func buildPatch(req ReallocateRequest) (Patch, map[string]interface{}) {
	var p Patch
	changes := make(map[string]interface{})
	if req.StaffIDs != nil {
		ids := append([]string{}, *req.StaffIDs...)
		p.StaffIDs = &ids
		changes["staff_ids"] = ids
	}
	if req.BedCount != nil {
		n := int(*req.BedCount)
		p.BedCount = &n
		changes["bed_count"] = n
	}
	if req.Equipment != nil {
		eq := append([]string{}, *req.Equipment...)
		p.Equipment = &eq
		changes["equipment"] = eq
	}
	return p, changes
}

func (s *Service) GetAllocationByID(ctx context.Context, id string) (*Allocation, error) {
	a, err := s.allocations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get allocation: %w", err)
	}
	if a == nil {
		return nil, notFound(ResourceAllocation)
	}
	return a, nil
}

func (s *Service) ListAllocations(ctx context.Context, limit, offset int) ([]*Allocation, int, error) {
	items, total, err := s.allocations.ListPage(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list allocations: %w", err)
	}
	return items, total, nil
}

// DeleteAllocation removes an allocation record. It is an administrative
// operation; the engine never deletes on its own.
func (s *Service) DeleteAllocation(ctx context.Context, id string) error {
	if _, err := s.GetAllocationByID(ctx, id); err != nil {
		return err
	}
	if err := s.allocations.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	return nil
}

// Side effects below never fail the calling operation.

func (s *Service) record(ctx context.Context, actorID, action, target string, details map[string]interface{}) {
	if err := s.audit.Append(ctx, actorID, action, target, details); err != nil {
		s.metrics.SideEffectFailed("audit")
		s.logger.Error().Err(err).
			Str("action", action).
			Str("target", target).
			Msg("audit append failed")
	}
}

func (s *Service) notifyDepartment(ctx context.Context, allocationID, dept, msg string) {
	if err := s.notifier.NotifyDepartment(ctx, dept, msg); err != nil {
		s.metrics.SideEffectFailed("notify_department")
		s.logger.Warn().Err(err).
			Str("allocation_id", allocationID).
			Str("department", dept).
			Msg("department notification failed")
	}
}

func (s *Service) notifyStaff(ctx context.Context, allocationID string, staffIDs []string, msg string) {
	if len(staffIDs) == 0 {
		return
	}
	if err := s.notifier.NotifyStaff(ctx, staffIDs, msg); err != nil {
		s.metrics.SideEffectFailed("notify_staff")
		s.logger.Warn().Err(err).
			Str("allocation_id", allocationID).
			Int("staff_count", len(staffIDs)).
			Msg("staff notification failed")
	}
}
