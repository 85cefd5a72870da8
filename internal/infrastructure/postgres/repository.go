package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/ListForge/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const queryTimeout = 5 * time.Second

// ListRepository stores the items of one list type in a single table.
// Queries are written with $N placeholders so the same SQL runs on
// Postgres and SQLite.
type ListRepository struct {
	db     *sql.DB
	table  domain.Table
	tracer trace.Tracer
	now    func() time.Time
	txOpts *sql.TxOptions

	selectColumns string
}

// Option configures a ListRepository.
type Option func(*ListRepository)

// WithIsolation runs every transaction at the given isolation level.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(r *ListRepository) {
		r.txOpts = &sql.TxOptions{Isolation: level}
	}
}

// WithClock overrides the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(r *ListRepository) {
		r.now = now
	}
}

func NewListRepository(db *sql.DB, table domain.Table, opts ...Option) *ListRepository {
	r := &ListRepository{
		db:     db,
		table:  table,
		tracer: otel.Tracer("postgres-repository"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}

	columns := []string{"id"}
	if table.KindColumn != "" {
		columns = append(columns, table.KindColumn)
	}
	columns = append(columns, table.PositionColumn)
	columns = append(columns, table.Columns...)
	columns = append(columns, "created_at", "updated_at")
	r.selectColumns = strings.Join(columns, ", ")

	return r
}

func (r *ListRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx domain.ListTx) error) (err error) {
	ctx, span := r.tracer.Start(ctx, "repository.WithTx")
	defer span.End()

	span.SetAttributes(attribute.String("table", r.table.Name))

	tx, err := r.db.BeginTx(ctx, r.txOpts)
	if err != nil {
		span.RecordError(err)
		return storageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &listTx{repo: r, tx: tx}); err != nil {
		span.RecordError(err)
		if rbErr := tx.Rollback(); rbErr != nil {
			span.RecordError(rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return storageError("commit transaction", err)
	}

	return nil
}

type listTx struct {
	repo *ListRepository
	tx   *sql.Tx
}

func (t *listTx) Get(ctx context.Context, id int64) (*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.Get")
	defer span.End()

	span.SetAttributes(attribute.Int64("item.id", id))

	query := rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.repo.selectColumns, t.repo.table.Name))

	item, err := t.repo.scanItem(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetAttributes(attribute.Bool("not_found", true))
			return nil, domain.ErrItemNotFound
		}
		span.RecordError(err)
		return nil, storageError("get item", err)
	}

	return item, nil
}

func (t *listTx) GetMany(ctx context.Context, ids []int64) ([]*domain.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.GetMany")
	defer span.End()

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id IN (%s) ORDER BY id",
		t.repo.selectColumns, t.repo.table.Name, placeholders(len(ids))))

	items, err := t.queryItems(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, storageError("get items", err)
	}

	span.SetAttributes(attribute.Int("returned_count", len(items)))
	return items, nil
}

func (t *listTx) Query(ctx context.Context, scope domain.Scope) ([]*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.Query")
	defer span.End()

	span.SetAttributes(attribute.String("scope", scope.Key))

	pos := t.repo.table.PositionColumn
	query := rebind(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE (%s)
		ORDER BY %s IS NULL, %s, id
	`, t.repo.selectColumns, t.repo.table.Name, scope.Clause, pos, pos))

	items, err := t.queryItems(ctx, query, scope.Args...)
	if err != nil {
		span.RecordError(err)
		return nil, storageError("query scope", err)
	}

	span.SetAttributes(attribute.Int("returned_count", len(items)))
	return items, nil
}

func (t *listTx) QueryOne(ctx context.Context, scope domain.Scope, cond domain.PositionCond) (*domain.Item, error) {
	if !cond.Valid() {
		return nil, fmt.Errorf("%w: unsupported position operator %q", domain.ErrStorage, cond.Op)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.QueryOne")
	defer span.End()

	span.SetAttributes(
		attribute.String("scope", scope.Key),
		attribute.String("cond", fmt.Sprintf("%s %d", cond.Op, cond.Value)),
	)

	query := rebind(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE (%s) AND %s %s ?
		ORDER BY id
		LIMIT 1
	`, t.repo.selectColumns, t.repo.table.Name, scope.Clause, t.repo.table.PositionColumn, cond.Op))

	args := append(append([]any{}, scope.Args...), cond.Value)

	item, err := t.repo.scanItem(t.tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			span.SetAttributes(attribute.Bool("not_found", true))
			return nil, nil
		}
		span.RecordError(err)
		return nil, storageError("query item", err)
	}

	return item, nil
}

func (t *listTx) MaxPosition(ctx context.Context, scope domain.Scope, excludeIDs ...int64) (int, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.MaxPosition")
	defer span.End()

	span.SetAttributes(attribute.String("scope", scope.Key))

	where := "(" + scope.Clause + ")"
	args := append([]any{}, scope.Args...)
	if len(excludeIDs) > 0 {
		where += fmt.Sprintf(" AND id NOT IN (%s)", placeholders(len(excludeIDs)))
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}

	query := rebind(fmt.Sprintf("SELECT MAX(%s) FROM %s WHERE %s",
		t.repo.table.PositionColumn, t.repo.table.Name, where))

	var max sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&max); err != nil {
		span.RecordError(err)
		return 0, false, storageError("max position", err)
	}

	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}

func (t *listTx) UpdatePosition(ctx context.Context, id int64, position *int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.UpdatePosition")
	defer span.End()

	span.SetAttributes(attribute.Int64("item.id", id))

	var value any
	if position != nil {
		value = *position
		span.SetAttributes(attribute.Int("position", *position))
	}

	query := rebind(fmt.Sprintf("UPDATE %s SET %s = ?, updated_at = ? WHERE id = ?",
		t.repo.table.Name, t.repo.table.PositionColumn))

	result, err := t.tx.ExecContext(ctx, query, value, t.repo.now(), id)
	if err != nil {
		span.RecordError(err)
		return storageError("update position", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return storageError("get rows affected", err)
	}

	if rowsAffected == 0 {
		span.SetAttributes(attribute.Bool("stale_row", true))
		return fmt.Errorf("%w: %w: item %d vanished during update", domain.ErrStorage, domain.ErrItemNotFound, id)
	}

	return nil
}

func (t *listTx) ShiftPositions(ctx context.Context, scope domain.Scope, delta int, cond domain.PositionCond) (int64, error) {
	if !cond.Valid() {
		return 0, fmt.Errorf("%w: unsupported position operator %q", domain.ErrStorage, cond.Op)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.ShiftPositions")
	defer span.End()

	span.SetAttributes(
		attribute.String("scope", scope.Key),
		attribute.Int("delta", delta),
	)

	pos := t.repo.table.PositionColumn
	query := rebind(fmt.Sprintf(`
		UPDATE %s
		SET %s = %s + ?, updated_at = ?
		WHERE (%s) AND %s %s ?
	`, t.repo.table.Name, pos, pos, scope.Clause, pos, cond.Op))

	args := make([]any, 0, len(scope.Args)+3)
	args = append(args, delta, t.repo.now())
	args = append(args, scope.Args...)
	args = append(args, cond.Value)

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return 0, storageError("shift positions", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return 0, storageError("get rows affected", err)
	}

	span.SetAttributes(attribute.Int64("rows_affected", rowsAffected))
	return rowsAffected, nil
}

func (t *listTx) Insert(ctx context.Context, item *domain.Item) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.Insert")
	defer span.End()

	now := t.repo.now()

	var columns []string
	var args []any
	if t.repo.table.KindColumn != "" && item.Kind != "" {
		columns = append(columns, t.repo.table.KindColumn)
		args = append(args, item.Kind)
	}

	var position any
	if item.Position != nil {
		position = *item.Position
	}
	columns = append(columns, t.repo.table.PositionColumn)
	args = append(args, position)

	for _, column := range t.repo.table.Columns {
		value, ok := item.Attr(column)
		if !ok {
			continue
		}
		columns = append(columns, column)
		args = append(args, value)
	}

	columns = append(columns, "created_at", "updated_at")
	args = append(args, now, now)

	query := rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		t.repo.table.Name, strings.Join(columns, ", "), placeholders(len(columns))))

	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&item.ID); err != nil {
		span.RecordError(err)
		return storageError("insert item", err)
	}

	item.CreatedAt = now
	item.UpdatedAt = now

	span.SetAttributes(attribute.Int64("item.id", item.ID))
	return nil
}

func (t *listTx) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, span := t.repo.tracer.Start(ctx, "repository.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int64("item.id", id))

	query := rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.repo.table.Name))

	result, err := t.tx.ExecContext(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		return storageError("delete item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageError("get rows affected", err)
	}

	if rowsAffected == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

func (t *listTx) queryItems(ctx context.Context, query string, args ...any) ([]*domain.Item, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*domain.Item, 0)
	for rows.Next() {
		item, err := t.repo.scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ListRepository) scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{Attrs: make(map[string]any, len(r.table.Columns))}

	var (
		kind     sql.NullString
		position sql.NullInt64
	)

	dest := []any{&item.ID}
	if r.table.KindColumn != "" {
		dest = append(dest, &kind)
	}
	dest = append(dest, &position)

	values := make([]any, len(r.table.Columns))
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &item.CreatedAt, &item.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	item.Kind = kind.String
	if position.Valid {
		item.Position = domain.Pos(int(position.Int64))
	}
	for i, column := range r.table.Columns {
		if b, ok := values[i].([]byte); ok {
			values[i] = string(b)
		}
		item.Attrs[column] = values[i]
	}

	return item, nil
}

// rebind rewrites ? placeholders into $1, $2, ... in order of appearance.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
