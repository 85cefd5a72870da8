// Package orderedlist keeps the items of a list type in a dense, per-scope
// ordering. Positions run 1..N with no gaps or duplicates within every scope
// and follow list order.
//
// Each operation is a single transaction on the backing store: the item is
// re-read inside it, the neighbouring rows are shifted and the item's own
// position is written. Nothing is cached between calls. Concurrent writers on
// the same scope are serialized only by the database's isolation level; the
// engine does not retry, and a conflicting write surfaces as
// domain.ErrConflict for the caller to retry if it wishes.
package orderedlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmehra2102/ListForge/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type List struct {
	def     domain.ResolvedList
	store   domain.Store
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

type Option func(*List)

// WithMetrics records operation counts and durations.
func WithMetrics(m *Metrics) Option {
	return func(l *List) {
		l.metrics = m
	}
}

func New(def domain.ResolvedList, store domain.Store, logger *zap.Logger, opts ...Option) (*List, error) {
	if def.ScopeFor == nil {
		return nil, fmt.Errorf("%w: list %q is not resolved", domain.ErrInvalidConfig, def.Config.Name)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: list %q has no store", domain.ErrInvalidConfig, def.Config.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &List{
		def:    def,
		store:  store,
		logger: logger.With(zap.String("list", def.Config.Name)),
		tracer: otel.Tracer("orderedlist"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *List) Name() string {
	return l.def.Config.Name
}

func (l *List) Config() domain.ListConfig {
	return l.def.Config
}

// Create persists a new item. Without a preset position it is appended to
// the bottom of its scope; a preset position is stored unchanged, so use
// InsertAt to claim a specific slot.
func (l *List) Create(ctx context.Context, item *domain.Item) (*domain.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("create: nil item")
	}
	if err := l.def.CheckAttrs(item.Attrs); err != nil {
		return nil, err
	}
	if item.Position != nil && *item.Position < 1 {
		return nil, domain.ErrInvalidPosition
	}

	var created *domain.Item
	err := l.run(ctx, "create", 0, func(ctx context.Context, tx domain.ListTx) error {
		created = domain.NewItem(item.Kind, item.Attrs)
		if item.Position != nil {
			created.Position = domain.Pos(*item.Position)
		}

		scope, err := l.def.ScopeFor(created)
		if err != nil {
			return err
		}

		if created.Position == nil {
			bottom, _, err := tx.MaxPosition(ctx, scope)
			if err != nil {
				return err
			}
			created.Position = domain.Pos(bottom + 1)
		}

		if err := tx.Insert(ctx, created); err != nil {
			return err
		}

		l.logger.Debug("item created",
			zap.Int64("item_id", created.ID),
			zap.String("scope", scope.Key),
			zap.Int("position", *created.Position),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Destroy takes the item out of its list, closing the gap, and deletes it.
func (l *List) Destroy(ctx context.Context, id int64) error {
	return l.run(ctx, "destroy", id, func(ctx context.Context, tx domain.ListTx) error {
		item, scope, err := l.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := l.removeFromList(ctx, tx, item, scope); err != nil {
			return err
		}
		if err := tx.Delete(ctx, id); err != nil {
			return err
		}

		l.logger.Debug("item destroyed", zap.Int64("item_id", id), zap.String("scope", scope.Key))
		return nil
	})
}

// InsertAt places the item at position, shifting the items at or below it
// down by one. A position past the bottom of the list becomes bottom+1.
func (l *List) InsertAt(ctx context.Context, id int64, position int) (*domain.Item, error) {
	if position < 1 {
		return nil, domain.ErrInvalidPosition
	}

	return l.mutate(ctx, "insert_at", id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		if err := l.removeFromList(ctx, tx, item, scope); err != nil {
			return err
		}

		target := position
		bottom, _, err := tx.MaxPosition(ctx, scope, item.ID)
		if err != nil {
			return err
		}
		if target > bottom+1 {
			target = bottom + 1
		}

		if _, err := tx.ShiftPositions(ctx, scope, 1, domain.PositionAtLeast(target)); err != nil {
			return err
		}
		return l.setPosition(ctx, tx, item, scope, target)
	})
}

// MoveLower swaps the item with the one right below it. It does nothing for
// the last item or an item not in a list.
func (l *List) MoveLower(ctx context.Context, id int64) (*domain.Item, error) {
	return l.mutate(ctx, "move_lower", id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		if !item.InList() {
			return nil
		}
		return l.swap(ctx, tx, item, scope, *item.Position+1)
	})
}

// MoveHigher swaps the item with the one right above it. It does nothing for
// the first item or an item not in a list.
func (l *List) MoveHigher(ctx context.Context, id int64) (*domain.Item, error) {
	return l.mutate(ctx, "move_higher", id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		if !item.InList() || *item.Position <= 1 {
			return nil
		}
		return l.swap(ctx, tx, item, scope, *item.Position-1)
	})
}

// MoveToBottom moves a listed item to the end of its list.
func (l *List) MoveToBottom(ctx context.Context, id int64) (*domain.Item, error) {
	return l.mutate(ctx, "move_to_bottom", id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		if !item.InList() {
			return nil
		}

		if _, err := tx.ShiftPositions(ctx, scope, -1, domain.PositionAbove(*item.Position)); err != nil {
			return err
		}

		bottom, _, err := tx.MaxPosition(ctx, scope, item.ID)
		if err != nil {
			return err
		}
		return l.setPosition(ctx, tx, item, scope, bottom+1)
	})
}

// MoveToTop moves a listed item to position 1.
func (l *List) MoveToTop(ctx context.Context, id int64) (*domain.Item, error) {
	return l.mutate(ctx, "move_to_top", id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		if !item.InList() {
			return nil
		}

		if _, err := tx.ShiftPositions(ctx, scope, 1, domain.PositionBelow(*item.Position)); err != nil {
			return err
		}
		return l.setPosition(ctx, tx, item, scope, 1)
	})
}

// RemoveFromList clears the item's position and closes the gap it leaves.
func (l *List) RemoveFromList(ctx context.Context, id int64) (*domain.Item, error) {
	return l.mutate(ctx, "remove_from_list", id, func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
		return l.removeFromList(ctx, tx, item, scope)
	})
}

// ReorderByIDs gives the listed items positions 1..k in the order given and
// appends the rest of the scope after them, keeping their relative order.
// The scope is that of the first id that exists; ids that do not exist, are
// outside that scope or repeat are skipped. Only changed rows are written.
// The resulting list is returned.
func (l *List) ReorderByIDs(ctx context.Context, ids []int64) ([]*domain.Item, error) {
	var result []*domain.Item

	err := l.run(ctx, "reorder", 0, func(ctx context.Context, tx domain.ListTx) error {
		found, err := tx.GetMany(ctx, ids)
		if err != nil {
			return err
		}
		known := make(map[int64]*domain.Item, len(found))
		for _, item := range found {
			known[item.ID] = item
		}

		var first *domain.Item
		for _, id := range ids {
			if item, ok := known[id]; ok {
				first = item
				break
			}
		}
		if first == nil {
			l.logger.Debug("reorder skipped, no known ids", zap.Int("ids", len(ids)))
			return nil
		}

		scope, err := l.def.ScopeFor(first)
		if err != nil {
			return err
		}

		members, err := tx.Query(ctx, scope)
		if err != nil {
			return err
		}

		byID := make(map[int64]*domain.Item, len(members))
		for _, m := range members {
			byID[m.ID] = m
		}

		result = make([]*domain.Item, 0, len(members))
		position := 1
		assign := func(item *domain.Item) error {
			if item.Position == nil || *item.Position != position {
				if err := tx.UpdatePosition(ctx, item.ID, domain.Pos(position)); err != nil {
					return err
				}
				item.Position = domain.Pos(position)
			}
			result = append(result, item)
			position++
			return nil
		}

		for _, id := range ids {
			item, ok := byID[id]
			if !ok {
				continue
			}
			delete(byID, id)
			if err := assign(item); err != nil {
				return err
			}
		}

		rest := make([]*domain.Item, 0, len(byID))
		for _, item := range byID {
			rest = append(rest, item)
		}
		sort.Slice(rest, func(i, j int) bool {
			pi, pj := rest[i].PositionOrZero(), rest[j].PositionOrZero()
			if pi != pj {
				return pi < pj
			}
			return rest[i].ID < rest[j].ID
		})
		for _, item := range rest {
			if err := assign(item); err != nil {
				return err
			}
		}

		l.logger.Debug("list reordered",
			zap.String("scope", scope.Key),
			zap.Int("requested", len(ids)),
			zap.Int("members", len(result)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type mutation func(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error

// mutate loads the item inside a transaction, applies fn and returns the
// item's state after fn.
func (l *List) mutate(ctx context.Context, op string, id int64, fn mutation) (*domain.Item, error) {
	var out *domain.Item
	err := l.run(ctx, op, id, func(ctx context.Context, tx domain.ListTx) error {
		item, scope, err := l.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, item, scope); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (l *List) run(ctx context.Context, op string, id int64, fn func(ctx context.Context, tx domain.ListTx) error) error {
	start := time.Now()

	ctx, span := l.tracer.Start(ctx, "orderedlist."+op)
	defer span.End()

	span.SetAttributes(
		attribute.String("list", l.def.Config.Name),
		attribute.Int64("item.id", id),
	)

	err := l.store.WithTx(ctx, fn)
	l.metrics.observe(l.def.Config.Name, op, time.Since(start).Seconds(), err)

	if err != nil {
		span.RecordError(err)
		fields := []zap.Field{zap.String("op", op), zap.Int64("item_id", id), zap.Error(err)}
		switch {
		case isCallerError(err):
			l.logger.Debug("list operation rejected", fields...)
		case domain.IsRetryable(err), errors.Is(err, domain.ErrReferenced):
			l.logger.Warn("list operation refused by store", fields...)
		default:
			l.logger.Error("list operation failed", fields...)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// isCallerError reports failures caused by the request rather than the store.
func isCallerError(err error) bool {
	for _, target := range []error{
		domain.ErrItemNotFound,
		domain.ErrNotInList,
		domain.ErrInvalidID,
		domain.ErrInvalidPosition,
		domain.ErrInvalidAttribute,
		domain.ErrScopeResolution,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (l *List) load(ctx context.Context, tx domain.ListTx, id int64) (*domain.Item, domain.Scope, error) {
	if id <= 0 {
		return nil, domain.Scope{}, domain.ErrInvalidID
	}

	item, err := tx.Get(ctx, id)
	if err != nil {
		return nil, domain.Scope{}, err
	}

	scope, err := l.def.ScopeFor(item)
	if err != nil {
		return nil, domain.Scope{}, err
	}
	return item, scope, nil
}

func (l *List) removeFromList(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope) error {
	if !item.InList() {
		return nil
	}

	if _, err := tx.ShiftPositions(ctx, scope, -1, domain.PositionAbove(*item.Position)); err != nil {
		return err
	}
	if err := tx.UpdatePosition(ctx, item.ID, nil); err != nil {
		return err
	}

	l.logger.Debug("item removed from list",
		zap.Int64("item_id", item.ID),
		zap.String("scope", scope.Key),
		zap.Int("position", *item.Position),
	)
	item.Position = nil
	return nil
}

func (l *List) swap(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope, target int) error {
	neighbour, err := tx.QueryOne(ctx, scope, domain.PositionEq(target))
	if err != nil {
		return err
	}
	if neighbour == nil {
		return nil
	}

	current := *item.Position
	if err := tx.UpdatePosition(ctx, neighbour.ID, domain.Pos(current)); err != nil {
		return err
	}
	return l.setPosition(ctx, tx, item, scope, target)
}

func (l *List) setPosition(ctx context.Context, tx domain.ListTx, item *domain.Item, scope domain.Scope, position int) error {
	if err := tx.UpdatePosition(ctx, item.ID, domain.Pos(position)); err != nil {
		return err
	}

	l.logger.Debug("item positioned",
		zap.Int64("item_id", item.ID),
		zap.String("scope", scope.Key),
		zap.Int("position", position),
	)
	item.Position = domain.Pos(position)
	return nil
}
