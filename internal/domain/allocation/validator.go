package allocation

import (
	"math"
	"strings"
)

// ValidateAllocation checks the department and bed count of a new allocation.
func ValidateAllocation(department string, bedCount float64) error {
	if strings.TrimSpace(department) == "" {
		return invalid("Department is required")
	}
	return validateBedCount(bedCount)
}

// ValidateReallocation checks only the fields present in a partial update.
func ValidateReallocation(staffIDs *[]string, bedCount *float64) error {
	if staffIDs != nil && len(*staffIDs) == 0 {
		return invalid("Staff IDs must be a non-empty array")
	}
	if bedCount != nil {
		return validateBedCount(*bedCount)
	}
	return nil
}

func validateBedCount(n float64) error {
	if n < 0 {
		return invalid("Bed count cannot be negative")
	}
	if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
		return invalid("Bed count must be an integer")
	}
	if n > math.MaxInt32 {
		return invalid("Bed count is too large")
	}
	return nil
}
