package directory

import "strings"

// RoleManager is the only actor role allowed to run capacity operations.
const RoleManager = "manager"

// Actor is an identity resolved from the manager directory.
type Actor struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name,omitempty"`
	Role string `db:"role" json:"role"`
}

func (a *Actor) IsManager() bool {
	return a != nil && a.Role == RoleManager
}

type Hospital struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name,omitempty"`
}

type StaffMember struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name,omitempty"`
	Department string `db:"department" json:"department"`
	Available  bool   `db:"available" json:"available"`
}

// NormalizeID returns the canonical form of an actor, staff or hospital id.
// Ids are stored uppercase.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeDepartment returns the canonical form of a department name.
func NormalizeDepartment(dept string) string {
	return strings.ToUpper(strings.TrimSpace(dept))
}
