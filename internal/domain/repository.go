package domain

import "context"

// Store is the backing store the ordered list engine runs against.
type Store interface {
	// WithTx runs fn inside one transaction. It commits when fn returns nil
	// and rolls back on error or panic.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx ListTx) error) error
}

// ListTx is the set of reads and writes available inside a transaction.
// Every storage error returned wraps ErrStorage.
type ListTx interface {
	// Get retrieves an item by ID, ErrItemNotFound when missing
	Get(ctx context.Context, id int64) (*Item, error)

	// GetMany retrieves the existing items among ids, in no particular order
	GetMany(ctx context.Context, ids []int64) ([]*Item, error)

	// Query returns the members of a scope ordered by position, unpositioned
	// members last
	Query(ctx context.Context, scope Scope) ([]*Item, error)

	// QueryOne returns the first scope member matching cond, or nil
	QueryOne(ctx context.Context, scope Scope, cond PositionCond) (*Item, error)

	// MaxPosition returns the highest position in scope ignoring excludeIDs.
	// ok is false when no positioned member remains.
	MaxPosition(ctx context.Context, scope Scope, excludeIDs ...int64) (max int, ok bool, err error)

	// UpdatePosition sets a single item's position; nil removes it
	UpdatePosition(ctx context.Context, id int64, position *int) error

	// ShiftPositions adds delta to the position of every scope member
	// matching cond and returns the number of rows changed
	ShiftPositions(ctx context.Context, scope Scope, delta int, cond PositionCond) (int64, error)

	// Insert persists a new item and fills its ID and timestamps
	Insert(ctx context.Context, item *Item) error

	// Delete physically removes an item
	Delete(ctx context.Context, id int64) error
}
