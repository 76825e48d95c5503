package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hospitalops/hospitalops/internal/platform/db"
)

// SQLiteStore reads the directory tables of the single-node store.
type SQLiteStore struct{ db *sql.DB }

func NewSQLiteStore(sqlDB *sql.DB) *SQLiteStore { return &SQLiteStore{db: sqlDB} }

func (r *SQLiteStore) conn(ctx context.Context) db.SQLExecutor {
	return db.SQLConn(ctx, r.db)
}

func (r *SQLiteStore) FindActorByID(ctx context.Context, id string) (*Actor, error) {
	var a Actor
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, role FROM healthcare_manager WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find manager %s: %w", id, err)
	}
	return &a, nil
}

func (r *SQLiteStore) FindHospitalByID(ctx context.Context, id string) (*Hospital, error) {
	var h Hospital
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT id, name FROM hospital WHERE id = ?`, id).
		Scan(&h.ID, &h.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find hospital %s: %w", id, err)
	}
	return &h, nil
}

func (r *SQLiteStore) FindStaffByIDs(ctx context.Context, ids []string) ([]*StaffMember, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+staffCols+` FROM hospital_staff WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find staff by ids: %w", err)
	}
	return collectSQLStaff(rows)
}

func (r *SQLiteStore) FindStaffByDepartment(ctx context.Context, department string) ([]*StaffMember, error) {
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+staffCols+` FROM hospital_staff
		 WHERE UPPER(TRIM(department)) = ? ORDER BY id`, NormalizeDepartment(department))
	if err != nil {
		return nil, fmt.Errorf("find staff by department: %w", err)
	}
	return collectSQLStaff(rows)
}

func (r *SQLiteStore) FindAvailableStaff(ctx context.Context, department string, limit int) ([]*StaffMember, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+staffCols+` FROM hospital_staff
		 WHERE UPPER(TRIM(department)) = ? AND available = 1
		 ORDER BY id LIMIT ?`, NormalizeDepartment(department), limit)
	if err != nil {
		return nil, fmt.Errorf("find available staff: %w", err)
	}
	return collectSQLStaff(rows)
}

func collectSQLStaff(rows *sql.Rows) ([]*StaffMember, error) {
	defer rows.Close()
	var out []*StaffMember
	for rows.Next() {
		var s StaffMember
		if err := rows.Scan(&s.ID, &s.Name, &s.Department, &s.Available); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *SQLiteStore) UpsertActor(ctx context.Context, a *Actor) error {
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO healthcare_manager (id, name, role) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role`,
		a.ID, a.Name, a.Role)
	return err
}

func (r *SQLiteStore) UpsertHospital(ctx context.Context, h *Hospital) error {
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO hospital (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		h.ID, h.Name)
	return err
}

func (r *SQLiteStore) UpsertStaff(ctx context.Context, s *StaffMember) error {
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO hospital_staff (id, name, department, available) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name,
			department = excluded.department, available = excluded.available`,
		s.ID, s.Name, NormalizeDepartment(s.Department), s.Available)
	return err
}
