package orderedlist

import (
	"context"

	"github.com/dmehra2102/ListForge/internal/domain"
)

// Get returns the stored state of an item.
func (l *List) Get(ctx context.Context, id int64) (*domain.Item, error) {
	return l.mutate(ctx, "get", id, func(context.Context, domain.ListTx, *domain.Item, domain.Scope) error {
		return nil
	})
}

// Items returns the list the item belongs to, in order, followed by the
// scope members that are not positioned.
func (l *List) Items(ctx context.Context, id int64) ([]*domain.Item, error) {
	var items []*domain.Item
	_, err := l.mutate(ctx, "items", id, func(ctx context.Context, tx domain.ListTx, _ *domain.Item, scope domain.Scope) error {
		var err error
		items, err = tx.Query(ctx, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ItemsIn returns the list selected by the given scope attributes, e.g.
// {"gallery_id": 4}.
func (l *List) ItemsIn(ctx context.Context, attrs map[string]any) ([]*domain.Item, error) {
	scope, err := l.def.ScopeFor(domain.NewItem("", attrs))
	if err != nil {
		return nil, err
	}

	var items []*domain.Item
	err = l.run(ctx, "items_in", 0, func(ctx context.Context, tx domain.ListTx) error {
		var err error
		items, err = tx.Query(ctx, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// BottomPosition returns the last position of the list selected by attrs, or
// 0 when that list is empty.
func (l *List) BottomPosition(ctx context.Context, attrs map[string]any) (int, error) {
	scope, err := l.def.ScopeFor(domain.NewItem("", attrs))
	if err != nil {
		return 0, err
	}

	var bottom int
	err = l.run(ctx, "bottom_position", 0, func(ctx context.Context, tx domain.ListTx) error {
		var err error
		bottom, _, err = tx.MaxPosition(ctx, scope)
		return err
	})
	return bottom, err
}

// HigherItem returns the item right above id, or nil when id is first.
// It fails with domain.ErrNotInList when id has no position.
func (l *List) HigherItem(ctx context.Context, id int64) (*domain.Item, error) {
	return l.neighbour(ctx, "higher_item", id, -1)
}

// LowerItem returns the item right below id, or nil when id is last.
// It fails with domain.ErrNotInList when id has no position.
func (l *List) LowerItem(ctx context.Context, id int64) (*domain.Item, error) {
	return l.neighbour(ctx, "lower_item", id, 1)
}

// IsFirst reports whether the item is at position 1.
func (l *List) IsFirst(ctx context.Context, id int64) (bool, error) {
	item, err := l.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return item.InList() && *item.Position == 1, nil
}

// IsLast reports whether the item holds the bottom position of its list.
func (l *List) IsLast(ctx context.Context, id int64) (bool, error) {
	var last bool
	_, err := l.mutate(ctx, "is_last", id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		if !item.InList() {
			return nil
		}
		bottom, _, err := tx.MaxPosition(ctx, scope)
		if err != nil {
			return err
		}
		last = *item.Position == bottom
		return nil
	})
	return last, err
}

func (l *List) neighbour(ctx context.Context, op string, id int64, offset int) (*domain.Item, error) {
	var found *domain.Item
	_, err := l.mutate(ctx, op, id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		if !item.InList() {
			return domain.ErrNotInList
		}
		target := *item.Position + offset
		if target < 1 {
			return nil
		}

		var err error
		found, err = tx.QueryOne(ctx, scope, domain.PositionEq(target))
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
