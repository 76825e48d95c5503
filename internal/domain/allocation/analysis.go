package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hospitalops/hospitalops/internal/domain/directory"
)

// summarizeFlow groups allocations by department in first-seen order and sums
// their staff and beds.
func summarizeFlow(allocs []*Allocation, t Thresholds) []DepartmentFlow {
	index := make(map[string]int)
	flows := make([]DepartmentFlow, 0)
	for _, a := range allocs {
		dept := directory.NormalizeDepartment(a.Department)
		i, ok := index[dept]
		if !ok {
			i = len(flows)
			index[dept] = i
			flows = append(flows, DepartmentFlow{Department: dept})
		}
		flows[i].CurrentStaff += len(a.StaffIDs)
		flows[i].CurrentBeds += a.BedCount
	}
	for i := range flows {
		flows[i].FlowStatus = LevelNormal
		if flows[i].CurrentBeds > t.FlowHighBeds {
			flows[i].FlowStatus = LevelHigh
		}
	}
	return flows
}

// rawUtilization is allocated/total as an exact percentage. A department
// without beds reports 0.
func rawUtilization(allocated, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(allocated)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total)))
}

// utilizationRate is the reported rate, rounded to two places.
func utilizationRate(allocated, total int) float64 {
	return rawUtilization(allocated, total).Round(2).InexactFloat64()
}

// classifyUtilization works on the unrounded rate so 90.004% is already
// critical even though it reports as 90.
func classifyUtilization(rate decimal.Decimal, t Thresholds) string {
	switch {
	case rate.GreaterThan(decimal.NewFromFloat(t.UtilizationCritical)):
		return LevelCritical
	case rate.GreaterThan(decimal.NewFromFloat(t.UtilizationHigh)):
		return LevelHigh
	default:
		return LevelNormal
	}
}

func measureUtilization(pools []*ResourcePool, allocs []*Allocation, t Thresholds) []DepartmentUtilization {
	allocated := make(map[string]int)
	for _, a := range allocs {
		allocated[directory.NormalizeDepartment(a.Department)] += a.BedCount
	}

	out := make([]DepartmentUtilization, 0, len(pools))
	for _, p := range pools {
		dept := directory.NormalizeDepartment(p.Department)
		used := allocated[dept]
		raw := rawUtilization(used, p.BedCount)
		out = append(out, DepartmentUtilization{
			Department:      dept,
			TotalBeds:       p.BedCount,
			AllocatedBeds:   used,
			AvailableBeds:   p.BedCount - used,
			UtilizationRate: utilizationRate(used, p.BedCount),
			Status:          classifyUtilization(raw, t),
		})
	}
	return out
}

// remediationTarget is ceil(totalBeds * fraction), computed exactly.
func remediationTarget(totalBeds int, fraction float64) int {
	return int(decimal.NewFromInt(int64(totalBeds)).
		Mul(decimal.NewFromFloat(fraction)).
		Ceil().
		IntPart())
}

func findShortages(util []DepartmentUtilization, t Thresholds) []ShortageReport {
	shortages := make([]ShortageReport, 0)
	for _, d := range util {
		if d.UtilizationRate <= t.UtilizationCritical {
			continue
		}
		severity := LevelHigh
		if d.UtilizationRate > t.ShortageCritical {
			severity = LevelCritical
		}
		required := remediationTarget(d.TotalBeds, t.RemediationFraction)
		shortages = append(shortages, ShortageReport{
			Department:         d.Department,
			ShortageType:       ResourceBeds,
			Severity:           severity,
			Required:           required,
			CurrentUtilization: d.UtilizationRate,
			Message:            fmt.Sprintf("%s requires %d additional beds", d.Department, required),
		})
	}
	return shortages
}

// donors are departments below the donor ceiling that still have free beds.
func donors(util []DepartmentUtilization, t Thresholds) []DepartmentUtilization {
	var out []DepartmentUtilization
	for _, d := range util {
		if d.UtilizationRate < t.DonorMax && d.AvailableBeds > 0 {
			out = append(out, d)
		}
	}
	return out
}

// pickDonor returns the first donor able to cover required beds, else the
// first donor, else SourceExternalProcurement.
func pickDonor(pool []DepartmentUtilization, required int) string {
	for _, d := range pool {
		if d.AvailableBeds >= required {
			return d.Department
		}
	}
	if len(pool) > 0 {
		return pool[0].Department
	}
	return SourceExternalProcurement
}

func buildSuggestions(shortages []ShortageReport, util []DepartmentUtilization, t Thresholds, newID IDSource) []Suggestion {
	pool := donors(util, t)
	out := make([]Suggestion, 0, len(shortages))
	for _, s := range shortages {
		out = append(out, Suggestion{
			SuggestionID: fmt.Sprintf("SUGGEST-%s-%s", s.Department, newID()),
			From:         pickDonor(pool, s.Required),
			To:           s.Department,
			ResourceType: s.ShortageType,
			Quantity:     s.Required,
			Priority:     s.Severity,
			Reason:       s.Message,
		})
	}
	return out
}
