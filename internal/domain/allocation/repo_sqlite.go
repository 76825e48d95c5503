package allocation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hospitalops/hospitalops/internal/platform/db"
)

// SQLite keeps string lists as JSON arrays and timestamps as fixed-width UTC
// text.

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// =========== Resource Pool Repository ===========

type poolRepoSQLite struct{ db *sql.DB }

func NewPoolRepoSQLite(sqlDB *sql.DB) PoolRepository { return &poolRepoSQLite{db: sqlDB} }

func (r *poolRepoSQLite) conn(ctx context.Context) db.SQLExecutor {
	return db.SQLConn(ctx, r.db)
}

func scanPoolSQL(row scanner) (*ResourcePool, error) {
	var p ResourcePool
	var equipment, updated string
	if err := row.Scan(&p.Department, &p.BedCount, &equipment, &p.TotalStaff, &p.AvailableStaff, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.Equipment, err = decodeList(equipment); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = db.ParseSQLiteTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *poolRepoSQLite) GetByDepartment(ctx context.Context, department string) (*ResourcePool, error) {
	p, err := scanPoolSQL(r.conn(ctx).QueryRowContext(ctx,
		`SELECT `+poolCols+` FROM resource_pool WHERE department = ?`, department))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// List returns pools in creation order. The upsert updates rows in place, so
// rowid keeps the first-insert position.
func (r *poolRepoSQLite) List(ctx context.Context) ([]*ResourcePool, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT `+poolCols+` FROM resource_pool ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ResourcePool
	for rows.Next() {
		p, err := scanPoolSQL(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *poolRepoSQLite) Upsert(ctx context.Context, department string, bedCount int, equipment []string) (*ResourcePool, error) {
	raw, err := encodeList(equipment)
	if err != nil {
		return nil, err
	}
	now := db.FormatSQLiteTime(time.Now())
	_, err = r.conn(ctx).ExecContext(ctx, `
		INSERT INTO resource_pool (department, bed_count, equipment, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (department) DO UPDATE
		SET bed_count = excluded.bed_count, equipment = excluded.equipment, updated_at = excluded.updated_at`,
		department, bedCount, raw, now)
	if err != nil {
		return nil, err
	}
	return r.GetByDepartment(ctx, department)
}

// =========== Allocation Repository ===========

type allocationRepoSQLite struct{ db *sql.DB }

func NewAllocationRepoSQLite(sqlDB *sql.DB) AllocationRepository {
	return &allocationRepoSQLite{db: sqlDB}
}

func (r *allocationRepoSQLite) conn(ctx context.Context) db.SQLExecutor {
	return db.SQLConn(ctx, r.db)
}

func scanAllocationSQL(row scanner) (*Allocation, error) {
	var a Allocation
	var staff, equipment, status, created, updated string
	if err := row.Scan(&a.ID, &a.ManagerID, &a.HospitalID, &a.Department, &staff, &a.BedCount,
		&equipment, &status, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if a.StaffIDs, err = decodeList(staff); err != nil {
		return nil, err
	}
	if a.Equipment, err = decodeList(equipment); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = db.ParseSQLiteTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = db.ParseSQLiteTime(updated); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func (r *allocationRepoSQLite) Create(ctx context.Context, a *Allocation) error {
	staff, err := encodeList(a.StaffIDs)
	if err != nil {
		return err
	}
	equipment, err := encodeList(a.Equipment)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).ExecContext(ctx, `
		INSERT INTO resource_allocation (id, manager_id, hospital_id, department, staff_ids,
			bed_count, equipment, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ManagerID, a.HospitalID, a.Department, staff,
		a.BedCount, equipment, string(a.Status),
		db.FormatSQLiteTime(a.CreatedAt), db.FormatSQLiteTime(a.UpdatedAt))
	return err
}

func (r *allocationRepoSQLite) GetByID(ctx context.Context, id string) (*Allocation, error) {
	a, err := scanAllocationSQL(r.conn(ctx).QueryRowContext(ctx,
		`SELECT `+allocCols+` FROM resource_allocation WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *allocationRepoSQLite) List(ctx context.Context) ([]*Allocation, error) {
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+allocCols+` FROM resource_allocation ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	return collectAllocationsSQL(rows)
}

func (r *allocationRepoSQLite) ListPage(ctx context.Context, limit, offset int) ([]*Allocation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM resource_allocation`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+allocCols+` FROM resource_allocation ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectAllocationsSQL(rows)
	return items, total, err
}

func collectAllocationsSQL(rows *sql.Rows) ([]*Allocation, error) {
	defer rows.Close()
	var out []*Allocation
	for rows.Next() {
		a, err := scanAllocationSQL(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *allocationRepoSQLite) Update(ctx context.Context, id string, p Patch) (*Allocation, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{db.FormatSQLiteTime(time.Now())}
	if p.StaffIDs != nil {
		raw, err := encodeList(*p.StaffIDs)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "staff_ids = ?")
		args = append(args, raw)
	}
	if p.BedCount != nil {
		sets = append(sets, "bed_count = ?")
		args = append(args, *p.BedCount)
	}
	if p.Equipment != nil {
		raw, err := encodeList(*p.Equipment)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "equipment = ?")
		args = append(args, raw)
	}
	args = append(args, id)

	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE resource_allocation SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *allocationRepoSQLite) Delete(ctx context.Context, id string) error {
	_, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM resource_allocation WHERE id = ?`, id)
	return err
}
