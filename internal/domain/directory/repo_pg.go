package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospitalops/hospitalops/internal/platform/db"
)

// PGStore reads the directory tables through pgx.
type PGStore struct{ pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

func (r *PGStore) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const staffCols = `id, name, department, available`

func (r *PGStore) FindActorByID(ctx context.Context, id string) (*Actor, error) {
	var a Actor
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, role FROM healthcare_manager WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find manager %s: %w", id, err)
	}
	return &a, nil
}

func (r *PGStore) FindHospitalByID(ctx context.Context, id string) (*Hospital, error) {
	var h Hospital
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name FROM hospital WHERE id = $1`, id).
		Scan(&h.ID, &h.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find hospital %s: %w", id, err)
	}
	return &h, nil
}

func (r *PGStore) FindStaffByIDs(ctx context.Context, ids []string) ([]*StaffMember, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+staffCols+` FROM hospital_staff WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("find staff by ids: %w", err)
	}
	return collectStaff(rows)
}

func (r *PGStore) FindStaffByDepartment(ctx context.Context, department string) ([]*StaffMember, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+staffCols+` FROM hospital_staff
		 WHERE UPPER(TRIM(department)) = $1 ORDER BY id`, NormalizeDepartment(department))
	if err != nil {
		return nil, fmt.Errorf("find staff by department: %w", err)
	}
	return collectStaff(rows)
}

func (r *PGStore) FindAvailableStaff(ctx context.Context, department string, limit int) ([]*StaffMember, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+staffCols+` FROM hospital_staff
		 WHERE UPPER(TRIM(department)) = $1 AND available
		 ORDER BY id LIMIT $2`, NormalizeDepartment(department), limit)
	if err != nil {
		return nil, fmt.Errorf("find available staff: %w", err)
	}
	return collectStaff(rows)
}

func collectStaff(rows pgx.Rows) ([]*StaffMember, error) {
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

func (r *PGStore) UpsertActor(ctx context.Context, a *Actor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO healthcare_manager (id, name, role) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role`,
		a.ID, a.Name, a.Role)
	return err
}

func (r *PGStore) UpsertHospital(ctx context.Context, h *Hospital) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospital (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		h.ID, h.Name)
	return err
}

func (r *PGStore) UpsertStaff(ctx context.Context, s *StaffMember) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO hospital_staff (id, name, department, available) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
			department = EXCLUDED.department, available = EXCLUDED.available`,
		s.ID, s.Name, NormalizeDepartment(s.Department), s.Available)
	return err
}
