package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospitalops/hospitalops/internal/platform/db"
)

// =========== Resource Pool Repository ===========

type poolRepoPG struct{ pool *pgxpool.Pool }

func NewPoolRepoPG(pool *pgxpool.Pool) PoolRepository { return &poolRepoPG{pool: pool} }

func (r *poolRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const poolCols = `department, bed_count, equipment, total_staff, available_staff, updated_at`

func scanPool(row pgx.Row) (*ResourcePool, error) {
	var p ResourcePool
	err := row.Scan(&p.Department, &p.BedCount, &p.Equipment, &p.TotalStaff, &p.AvailableStaff, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *poolRepoPG) GetByDepartment(ctx context.Context, department string) (*ResourcePool, error) {
	p, err := scanPool(r.conn(ctx).QueryRow(ctx,
		`SELECT `+poolCols+` FROM resource_pool WHERE department = $1`, department))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// List returns pools in the order they were first created; donor fallback
// depends on it.
func (r *poolRepoPG) List(ctx context.Context) ([]*ResourcePool, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+poolCols+` FROM resource_pool ORDER BY created_at, department`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ResourcePool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Upsert locks an existing pool row first so concurrent allocations to one
// department serialize inside their transactions.
func (r *poolRepoPG) Upsert(ctx context.Context, department string, bedCount int, equipment []string) (*ResourcePool, error) {
	c := r.conn(ctx)
	var locked string
	err := c.QueryRow(ctx,
		`SELECT department FROM resource_pool WHERE department = $1 FOR UPDATE`, department).Scan(&locked)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock resource pool: %w", err)
	}
	if equipment == nil {
		equipment = []string{}
	}
	return scanPool(c.QueryRow(ctx, `
		INSERT INTO resource_pool (department, bed_count, equipment, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (department) DO UPDATE
		SET bed_count = EXCLUDED.bed_count, equipment = EXCLUDED.equipment, updated_at = NOW()
		RETURNING `+poolCols,
		department, bedCount, equipment))
}

// =========== Allocation Repository ===========

type allocationRepoPG struct{ pool *pgxpool.Pool }

func NewAllocationRepoPG(pool *pgxpool.Pool) AllocationRepository {
	return &allocationRepoPG{pool: pool}
}

func (r *allocationRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const allocCols = `id, manager_id, hospital_id, department, staff_ids, bed_count, equipment,
	status, created_at, updated_at`

func scanAllocation(row pgx.Row) (*Allocation, error) {
	var a Allocation
	err := row.Scan(&a.ID, &a.ManagerID, &a.HospitalID, &a.Department, &a.StaffIDs, &a.BedCount,
		&a.Equipment, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *allocationRepoPG) Create(ctx context.Context, a *Allocation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO resource_allocation (id, manager_id, hospital_id, department, staff_ids,
			bed_count, equipment, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.ManagerID, a.HospitalID, a.Department, a.StaffIDs,
		a.BedCount, a.Equipment, a.Status, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *allocationRepoPG) GetByID(ctx context.Context, id string) (*Allocation, error) {
	a, err := scanAllocation(r.conn(ctx).QueryRow(ctx,
		`SELECT `+allocCols+` FROM resource_allocation WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *allocationRepoPG) List(ctx context.Context) ([]*Allocation, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+allocCols+` FROM resource_allocation ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collectAllocations(rows)
}

func (r *allocationRepoPG) ListPage(ctx context.Context, limit, offset int) ([]*Allocation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM resource_allocation`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+allocCols+` FROM resource_allocation ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectAllocations(rows)
	return items, total, err
}

func collectAllocations(rows pgx.Rows) ([]*Allocation, error) {
	defer rows.Close()
	var out []*Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *allocationRepoPG) Update(ctx context.Context, id string, p Patch) (*Allocation, error) {
	var staff, beds, equipment interface{}
	if p.StaffIDs != nil {
		staff = *p.StaffIDs
	}
	if p.BedCount != nil {
		beds = *p.BedCount
	}
	if p.Equipment != nil {
		equipment = *p.Equipment
	}
	a, err := scanAllocation(r.conn(ctx).QueryRow(ctx, `
		UPDATE resource_allocation SET
			staff_ids = COALESCE($2::text[], staff_ids),
			bed_count = COALESCE($3::integer, bed_count),
			equipment = COALESCE($4::text[], equipment),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+allocCols,
		id, staff, beds, equipment))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *allocationRepoPG) Delete(ctx context.Context, id string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM resource_allocation WHERE id = $1`, id)
	return err
}
