package allocation

import "context"

// Lookups return (nil, nil) when the record does not exist.

type PoolRepository interface {
	GetByDepartment(ctx context.Context, department string) (*ResourcePool, error)
	List(ctx context.Context) ([]*ResourcePool, error)
	// Upsert creates the department's pool or overwrites its bed count and
	// equipment. Staff totals are left untouched.
	Upsert(ctx context.Context, department string, bedCount int, equipment []string) (*ResourcePool, error)
}

type AllocationRepository interface {
	Create(ctx context.Context, a *Allocation) error
	GetByID(ctx context.Context, id string) (*Allocation, error)
	// List returns every allocation, newest first.
	List(ctx context.Context) ([]*Allocation, error)
	ListPage(ctx context.Context, limit, offset int) ([]*Allocation, int, error)
	Update(ctx context.Context, id string, p Patch) (*Allocation, error)
	Delete(ctx context.Context, id string) error
}

// TxRunner runs fn in one store transaction. Repositories called with the
// context passed to fn join it.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
