// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/pkg/errors"

	"github.com/canonical/sqlbuilder/internal/typeinfo"
)

// projector is implemented by statements that know the names of their result
// columns.
type projector interface {
	Projections() []*Projection
}

// Query is a rendered statement bound to a database or a transaction. It is
// designed to be run once.
type Query struct {
	ctx      context.Context
	err      error
	sql      string
	bindings Bindings
	args     []any
	// names are the projection names results are mapped by. When nil the
	// driver column names are used.
	names []string
	opts  options
	run   runner
}

func newQuery(ctx context.Context, opts options, e Expr, run runner) *Query {
	if ctx == nil {
		ctx = context.Background()
	}
	q := &Query{ctx: ctx, opts: opts, run: run}
	if isNil(e) {
		q.err = invalidArgument("cannot run nil statement")
		return q
	}
	q.sql, q.bindings, q.err = e.Fragment().Render(opts.dialect)
	if q.err != nil {
		return q
	}
	q.args = q.bindings.Args(opts.dialect)
	if p, ok := e.(projector); ok {
		for _, proj := range p.Projections() {
			q.names = append(q.names, proj.Name())
		}
	}
	return q
}

// SQL returns the rendered statement text.
func (q *Query) SQL() string {
	return q.sql
}

// Bindings returns the parameters of the rendered statement.
func (q *Query) Bindings() Bindings {
	return q.bindings
}

// Err returns the error met while rendering the statement, if any.
func (q *Query) Err() error {
	return q.err
}

func (q *Query) logRun() {
	q.opts.logger.Debug("running statement", "sql", q.sql, "params", len(q.args))
}

// Exec runs a statement that returns no rows.
func (q *Query) Exec() (sql.Result, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.logRun()
	_, result, err := q.run(q.ctx, q.sql, q.args, false)
	if err != nil {
		return nil, errors.Wrap(err, "cannot run statement")
	}
	return result, nil
}

// Run runs a statement and disregards any results.
func (q *Query) Run() error {
	_, err := q.Exec()
	return err
}

// Iter returns an [Iterator] to iterate through the results row by row.
// [Iterator.Close] must be run once iteration is finished.
func (q *Query) Iter() *Iterator {
	if q.err != nil {
		return &Iterator{err: q.err}
	}
	q.logRun()
	rows, _, err := q.run(q.ctx, q.sql, q.args, true)
	if err != nil {
		return &Iterator{err: errors.Wrap(err, "cannot run query")}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return &Iterator{err: err}
	}
	if len(q.names) > len(cols) {
		rows.Close()
		return &Iterator{err: invalidOperation("selected column %q does not exist in the result", q.names[len(cols)])}
	}
	// Columns past the known projections are mapped by driver name.
	names := append(append([]string(nil), q.names...), cols[len(q.names):]...)
	return &Iterator{
		rows:  rows,
		names: names,
		raw:   make([]any, len(cols)),
		opts:  q.opts,
		plans: map[reflect.Type][]*typeinfo.Member{},
	}
}

// Get runs the query and maps the first row into dst, a pointer to a struct.
// It returns [ErrNoRows] if no results were found.
func (q *Query) Get(dst any) error {
	iter := q.Iter()
	if !iter.Next() {
		err := iter.Close()
		if err == nil {
			err = ErrNoRows
		}
		return err
	}
	err := iter.Get(dst)
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	return err
}

// GetAll runs the query and maps all rows into the slice pointed to by
// slicePtr, whose elements are structs or pointers to structs.
// [ErrNoRows] will be returned if no rows are found.
func (q *Query) GetAll(slicePtr any) error {
	ptrVal := reflect.ValueOf(slicePtr)
	if ptrVal.Kind() != reflect.Pointer {
		return invalidArgument("need pointer to slice, got %s", ptrVal.Kind())
	}
	if ptrVal.IsNil() {
		return invalidArgument("need pointer to slice, got nil")
	}
	sliceVal := ptrVal.Elem()
	if sliceVal.Kind() != reflect.Slice {
		return invalidArgument("need pointer to slice, got pointer to %s", sliceVal.Kind())
	}
	elems, err := q.collect(sliceVal.Type().Elem())
	if err != nil {
		return err
	}
	if elems.Len() == 0 {
		return ErrNoRows
	}
	sliceVal.Set(elems)
	return nil
}

// collect maps every row into a new slice of elemType.
func (q *Query) collect(elemType reflect.Type) (reflect.Value, error) {
	elems := reflect.MakeSlice(reflect.SliceOf(elemType), 0, 0)
	iter := q.Iter()
	for iter.Next() {
		v := reflect.New(elemType).Elem()
		if err := iter.assign(v); err != nil {
			iter.Close()
			return reflect.Value{}, err
		}
		elems = reflect.Append(elems, v)
	}
	if err := iter.Close(); err != nil {
		return reflect.Value{}, err
	}
	return elems, nil
}

// Iterator is used to iterate over the results of the query.
type Iterator struct {
	rows  *sql.Rows
	names []string
	raw   []any
	err   error
	opts  options
	plans map[reflect.Type][]*typeinfo.Member
}

// Next scans the next row for [Iterator.Get]. If an error occurs during
// iteration it will be returned with [Iterator.Close].
func (iter *Iterator) Next() bool {
	if iter.err != nil || iter.rows == nil {
		return false
	}
	if !iter.rows.Next() {
		return false
	}
	ptrs := make([]any, len(iter.raw))
	for i := range iter.raw {
		ptrs[i] = &iter.raw[i]
	}
	if err := iter.rows.Scan(ptrs...); err != nil {
		iter.err = err
		return false
	}
	return true
}

// Names returns the names results are mapped by, one per result column in
// order.
func (iter *Iterator) Names() []string {
	return iter.names
}

// Values returns the raw driver values of the current row.
func (iter *Iterator) Values() []any {
	return append([]any(nil), iter.raw...)
}

// Get maps the current row into dst, a pointer to a struct. Each column is
// assigned to the member named like it. Columns matching no member are
// skipped.
func (iter *Iterator) Get(dst any) error {
	if iter.err != nil {
		return iter.err
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return invalidArgument("need pointer to struct, got %T", dst)
	}
	return iter.assign(v.Elem())
}

// assign maps the current row into v. A struct receives the columns by name,
// a pointer to a struct is allocated first and any other type receives the
// first column.
func (iter *Iterator) assign(v reflect.Value) error {
	if iter.rows == nil {
		return errors.New("iteration ended")
	}
	switch {
	case v.Kind() == reflect.Pointer && v.Type().Elem().Kind() == reflect.Struct && !isValueStruct(v.Type().Elem()):
		elem := reflect.New(v.Type().Elem())
		if err := iter.assignStruct(elem.Elem()); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	case v.Kind() == reflect.Struct && !isValueStruct(v.Type()):
		return iter.assignStruct(v)
	}
	if len(iter.raw) == 0 {
		return invalidOperation("no result columns")
	}
	if err := iter.opts.converters.Assign(v, iter.raw[0]); err != nil {
		return errors.Wrapf(err, "cannot set result of column %q", iter.names[0])
	}
	return nil
}

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// isValueStruct reports whether structs of type t hold a single column value
// rather than a row.
func isValueStruct(t reflect.Type) bool {
	return t == timeType || reflect.PointerTo(t).Implements(scannerType)
}

func (iter *Iterator) assignStruct(v reflect.Value) error {
	plan, err := iter.plan(v.Type())
	if err != nil {
		return err
	}
	for i, m := range plan {
		if m == nil {
			continue
		}
		if err := iter.opts.converters.Assign(v.FieldByIndex(m.Index), iter.raw[i]); err != nil {
			return errors.Wrapf(err, "cannot set member %q", m.Name)
		}
	}
	return nil
}

// plan returns, for each result column, the member of t it is mapped to.
func (iter *Iterator) plan(t reflect.Type) ([]*typeinfo.Member, error) {
	if plan, ok := iter.plans[t]; ok {
		return plan, nil
	}
	info, err := iter.opts.types.Info(t)
	if err != nil {
		return nil, invalidArgument("%s", err)
	}
	plan := make([]*typeinfo.Member, len(iter.raw))
	for i := range plan {
		if m, ok := info.Member(iter.names[i]); ok {
			plan[i] = m
		}
	}
	iter.plans[t] = plan
	return plan, nil
}

// Close finishes the iteration and returns any errors encountered. Close can
// be called multiple times on the [Iterator] and the same error will be
// returned.
func (iter *Iterator) Close() error {
	if iter.rows == nil {
		return iter.err
	}
	err := iter.rows.Err()
	if cerr := iter.rows.Close(); err == nil {
		err = cerr
	}
	iter.rows = nil
	if iter.err != nil {
		return iter.err
	}
	return err
}
