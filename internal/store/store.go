// Package store executes tenant-scoped queries built with ent's SQL builder.
// Callers always pass the workspace predicate; the store never widens it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/m-mizutani/goerr/v2"

	"tracker-api/internal/apperr"
	"tracker-api/internal/logx"
	"tracker-api/internal/resource"
)

var storeLogger = logx.GetScope("store")

// Store owns the driver.
type Store struct {
	drv dialect.Driver
	now func() time.Time
}

func New(drv dialect.Driver) *Store {
	return &Store{drv: drv, now: func() time.Time { return time.Now().UTC() }}
}

// Now returns the store clock in UTC, truncated to microseconds so values
// survive a round trip through every supported database.
func (s *Store) Now() time.Time { return s.now().Truncate(time.Microsecond) }

// Ping runs a trivial query to check that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, "SELECT 1", []any{}, rows); err != nil {
		return goerr.Wrap(err, "database ping failed")
	}
	return rows.Close()
}

// Q returns a querier running outside of any transaction.
func (s *Store) Q() *Querier {
	return &Querier{eq: s.drv, dialect: s.drv.Dialect()}
}

// InTx runs fn in a transaction. The transaction is rolled back when fn
// returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(q *Querier) error) (err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(&Querier{eq: tx, dialect: s.drv.Dialect(), tx: true}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			storeLogger.Sugar().Warnf("rollback: %v", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err, "failed to commit transaction")
	}
	return nil
}

// Querier runs statements on the driver or on an open transaction.
type Querier struct {
	eq      dialect.ExecQuerier
	dialect string
	tx      bool
}

// Builder returns a dialect-aware statement builder.
func (q *Querier) Builder() *entsql.DialectBuilder { return entsql.Dialect(q.dialect) }

// Postgres reports whether the querier talks to PostgreSQL.
func (q *Querier) Postgres() bool { return q.dialect == dialect.Postgres }

// Select runs a select on table. build may add predicates, ordering and paging.
func (q *Querier) Select(ctx context.Context, table string, cols []string, build func(*entsql.Selector)) ([]resource.Record, error) {
	sel := q.Builder().Select(cols...).From(entsql.Table(table))
	if build != nil {
		build(sel)
	}
	return q.query(ctx, sel)
}

// First returns the single row matching pred or an apperr not-found error.
func (q *Querier) First(ctx context.Context, table string, cols []string, pred *entsql.Predicate) (resource.Record, error) {
	recs, err := q.Select(ctx, table, cols, func(s *entsql.Selector) {
		s.Where(pred).Limit(1)
		if q.tx && q.Postgres() {
			s.ForUpdate()
		}
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.NotFound("record not found", goerr.V("table", table))
	}
	return recs[0], nil
}

// Exists reports whether a row matches pred.
func (q *Querier) Exists(ctx context.Context, table string, pred *entsql.Predicate) (bool, error) {
	recs, err := q.Select(ctx, table, []string{resource.ColID}, func(s *entsql.Selector) {
		s.Where(pred).Limit(1)
	})
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

// Count counts rows matching pred.
func (q *Querier) Count(ctx context.Context, table string, pred *entsql.Predicate) (int, error) {
	sel := q.Builder().Select(entsql.As(entsql.Count("*"), "n")).From(entsql.Table(table))
	if pred != nil {
		sel.Where(pred)
	}
	recs, err := q.query(ctx, sel)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	n, _ := AsInt(recs[0]["n"])
	return n, nil
}

// Max returns the largest value of an integer column, or -1 when no row matches.
func (q *Querier) Max(ctx context.Context, table, col string, pred *entsql.Predicate) (int, error) {
	sel := q.Builder().Select(entsql.As(entsql.Max(col), "m")).From(entsql.Table(table)).Where(pred)
	recs, err := q.query(ctx, sel)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 || recs[0]["m"] == nil {
		return -1, nil
	}
	n, _ := AsInt(recs[0]["m"])
	return n, nil
}

// Insert inserts one row.
func (q *Querier) Insert(ctx context.Context, table string, rec resource.Record) error {
	cols, vals := split(rec)
	ins := q.Builder().Insert(table).Columns(cols...).Values(vals...)
	_, err := q.exec(ctx, ins)
	return err
}

// InsertIgnore inserts one row unless it collides with the unique key formed
// by conflict. It reports whether a row was written.
func (q *Querier) InsertIgnore(ctx context.Context, table string, rec resource.Record, conflict ...string) (bool, error) {
	cols, vals := split(rec)
	ins := q.Builder().Insert(table).Columns(cols...).Values(vals...).
		OnConflict(entsql.ConflictColumns(conflict...), entsql.DoNothing())
	n, err := q.exec(ctx, ins)
	return n > 0, err
}

// Update sets values on rows matching pred and returns the affected count.
func (q *Querier) Update(ctx context.Context, table string, set resource.Record, pred *entsql.Predicate) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}
	upd := q.Builder().Update(table).Where(pred)
	cols, vals := split(set)
	for i, c := range cols {
		if vals[i] == nil {
			upd.SetNull(c)
			continue
		}
		upd.Set(c, vals[i])
	}
	return q.exec(ctx, upd)
}

// Shift adds delta to an integer column on rows matching pred.
func (q *Querier) Shift(ctx context.Context, table, col string, delta int, pred *entsql.Predicate) (int64, error) {
	upd := q.Builder().Update(table).Add(col, delta).Where(pred)
	return q.exec(ctx, upd)
}

// Delete removes rows matching pred and returns the affected count.
func (q *Querier) Delete(ctx context.Context, table string, pred *entsql.Predicate) (int64, error) {
	del := q.Builder().Delete(table).Where(pred)
	return q.exec(ctx, del)
}

func (q *Querier) exec(ctx context.Context, b entsql.Querier) (int64, error) {
	query, args := b.Query()
	var res sql.Result
	if err := q.eq.Exec(ctx, query, args, &res); err != nil {
		return 0, mapErr(err, "failed to execute statement", goerr.V("query", query))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read affected rows")
	}
	return n, nil
}

func (q *Querier) query(ctx context.Context, sel *entsql.Selector) ([]resource.Record, error) {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := q.eq.Query(ctx, query, args, rows); err != nil {
		return nil, mapErr(err, "failed to run query", goerr.V("query", query))
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read columns")
	}
	var out []resource.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, goerr.Wrap(err, "failed to scan row")
		}
		rec := make(resource.Record, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate rows")
	}
	return out, nil
}

func mapErr(err error, msg string, opts ...goerr.Option) error {
	if sqlgraph.IsUniqueConstraintError(err) {
		return apperr.Conflict(err, "resource already exists", opts...)
	}
	return goerr.Wrap(err, msg, opts...)
}

// split returns columns in a stable order with their values.
func split(rec resource.Record) ([]string, []any) {
	cols := make([]string, 0, len(rec))
	for c := range rec {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = rec[c]
	}
	return cols, vals
}

// AsInt converts numeric driver values.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		var i int
		_, err := fmt.Sscan(n, &i)
		return i, err == nil
	}
	return 0, false
}
