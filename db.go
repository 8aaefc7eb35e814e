// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/canonical/sqlbuilder/internal/typeinfo"
)

// stmtCache stores the driver prepared statements of every DB.
var stmtCache = newStatementCache()

// Converters is a registry of functions transforming raw driver values before
// they are assigned to struct members.
type Converters = typeinfo.Converters

// NewConverters returns an empty converter registry.
func NewConverters() *Converters {
	return typeinfo.NewConverters()
}

// RegisterConverter registers fn in the process wide registry as the
// conversion from driver values of type Source to members of type Target.
func RegisterConverter[Target, Source any](fn func(Source) (Target, error)) {
	RegisterConverterIn(typeinfo.DefaultConverters(), fn)
}

// RegisterConverterIn is RegisterConverter on an explicit registry.
func RegisterConverterIn[Target, Source any](c *Converters, fn func(Source) (Target, error)) {
	target := reflect.TypeOf((*Target)(nil)).Elem()
	source := reflect.TypeOf((*Source)(nil)).Elem()
	c.Register(target, source, func(src any) (any, error) {
		return fn(src.(Source))
	})
}

type options struct {
	dialect    Dialect
	logger     *slog.Logger
	types      *TypeCache
	converters *Converters
}

// Option configures a DB.
type Option func(*options)

// WithDialect sets the placeholder dialect statements are rendered with.
// The default is DefaultDialect.
func WithDialect(d Dialect) Option {
	return func(o *options) { o.dialect = d }
}

// WithLogger sets the logger statements are logged to at debug level. By
// default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTypeCache sets the cache results are mapped to structs with.
func WithTypeCache(c *TypeCache) Option {
	return func(o *options) { o.types = c }
}

// WithConverters sets the registry of custom type converters.
func WithConverters(c *Converters) Option {
	return func(o *options) { o.converters = c }
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// DB wraps a sql.DB, rendering and running built statements on it.
type DB struct {
	// cacheID is used to look up the cached driver prepared statements prepared
	// on this database.
	cacheID uint64
	// sqldb is the underlying database/sql DB object.
	sqldb *sql.DB
	opts  options
}

// NewDB creates a new DB from a sql.DB.
func NewDB(sqldb *sql.DB, opts ...Option) *DB {
	if sqldb == nil {
		return nil
	}
	o := options{
		dialect:    DefaultDialect,
		logger:     discardLogger,
		types:      typeinfo.DefaultCache(),
		converters: typeinfo.DefaultConverters(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return stmtCache.newDB(sqldb, o)
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Dialect returns the dialect statements are rendered with.
func (db *DB) Dialect() Dialect {
	return db.opts.dialect
}

// runner runs a rendered statement, returning rows when withRows is set.
type runner func(ctx context.Context, query string, args []any, withRows bool) (*sql.Rows, sql.Result, error)

// Query renders e and returns a Query running it on the database when one
// of the Query methods is called. If e has projections (a QueryBuilder or a
// RootQuery) results are mapped by projection name, otherwise by the column
// names reported by the driver.
func (db *DB) Query(ctx context.Context, e Expr) *Query {
	run := func(innerCtx context.Context, query string, args []any, withRows bool) (rows *sql.Rows, result sql.Result, err error) {
		sqlstmt, ok := stmtCache.lookupStmt(db, query)
		if !ok {
			sqlstmt, err = stmtCache.driverPrepareStmt(innerCtx, db, query)
			if err != nil {
				return nil, nil, err
			}
		}
		switch {
		case sqlstmt == nil && withRows:
			rows, err = db.sqldb.QueryContext(innerCtx, query, args...)
		case sqlstmt == nil:
			result, err = db.sqldb.ExecContext(innerCtx, query, args...)
		case withRows:
			rows, err = sqlstmt.QueryContext(innerCtx, args...)
		default:
			result, err = sqlstmt.ExecContext(innerCtx, args...)
		}
		return rows, result, err
	}
	return newQuery(ctx, db.opts, e, run)
}

// Exec renders and runs a statement that returns no rows.
func (db *DB) Exec(ctx context.Context, e Expr) (sql.Result, error) {
	return db.Query(ctx, e).Exec()
}

// TX represents a transaction on the database.
type TX struct {
	sqltx *sql.Tx
	db    *DB
	done  int32
}

func (tx *TX) isDone() bool {
	return atomic.LoadInt32(&tx.done) == 1
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

// Begin starts a transaction. A transaction must be ended
// with a [TX.Commit] or [TX.Rollback].
func (db *DB) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sqltx, err := db.sqldb.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, err
	}
	return &TX{sqltx: sqltx, db: db}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Commit()
	}
	return err
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Rollback()
	}
	return err
}

// TXOptions holds the transaction options to be used in [DB.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level.
	// If zero, the driver or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}

// Query renders e and returns a Query running it within the transaction.
func (tx *TX) Query(ctx context.Context, e Expr) *Query {
	if tx.isDone() {
		return &Query{ctx: ctx, err: ErrTXDone}
	}

	run := func(innerCtx context.Context, query string, args []any, withRows bool) (rows *sql.Rows, result sql.Result, err error) {
		if sqlstmt, ok := stmtCache.lookupStmt(tx.db, query); ok {
			// Register the prepared statement on the transaction. Note that
			// this does not re-prepare the statement on the driver.
			// The txstmt is closed by database/sql when the transaction is
			// commited or rolled back.
			txstmt := tx.sqltx.StmtContext(innerCtx, sqlstmt)
			if withRows {
				rows, err = txstmt.QueryContext(innerCtx, args...)
			} else {
				result, err = txstmt.ExecContext(innerCtx, args...)
			}
			return rows, result, err
		}

		if withRows {
			rows, err = tx.sqltx.QueryContext(innerCtx, query, args...)
		} else {
			result, err = tx.sqltx.ExecContext(innerCtx, query, args...)
		}
		return rows, result, err
	}
	return newQuery(ctx, tx.db.opts, e, run)
}

// Exec renders and runs a statement that returns no rows within the
// transaction.
func (tx *TX) Exec(ctx context.Context, e Expr) (sql.Result, error) {
	return tx.Query(ctx, e).Exec()
}
