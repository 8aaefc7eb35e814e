// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"context"
	"database/sql"
	"reflect"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/sqlbuilder/internal/typeinfo"
)

// Executor runs statements that return no rows. It is implemented by [DB]
// and [TX].
type Executor interface {
	Exec(ctx context.Context, e Expr) (sql.Result, error)
}

// Updater collects UPDATE statements of selected members of objects, one
// statement per registered object.
type Updater struct {
	types *TypeCache
	stmts []*Fragment
	err   error
}

// NewUpdater returns an empty Updater. A nil cache means the process wide
// one.
func NewUpdater(types *TypeCache) *Updater {
	if types == nil {
		types = typeinfo.DefaultCache()
	}
	return &Updater{types: types}
}

// Update registers obj, a struct or pointer to struct, to be updated in
// table. The row is selected by the member idMember; members are the members
// written. With no members every member but idMember is written, except
// those tagged omitempty that hold their zero value.
func (u *Updater) Update(table string, obj any, idMember string, members ...string) *Updater {
	if u.err != nil {
		return u
	}
	stmt, err := updateStatement(u.types, table, obj, idMember, members)
	if err != nil {
		u.err = err
		return u
	}
	u.stmts = append(u.stmts, stmt)
	return u
}

func updateStatement(types *TypeCache, table string, obj any, idMember string, members []string) (*Fragment, error) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, invalidArgument("cannot update %s from nil object", table)
		}
		v = v.Elem()
	}
	info, err := types.TypeInfo(obj)
	if err != nil {
		return nil, invalidArgument("%s", err)
	}
	id, ok := lookupMember(info, idMember)
	if !ok {
		return nil, invalidArgument("type %s has no member %q", info.Type.Name(), idMember)
	}

	var set []*typeinfo.Member
	if len(members) == 0 {
		for _, m := range info.Members {
			if m == id || (m.OmitEmpty && m.Get(v).IsZero()) {
				continue
			}
			set = append(set, m)
		}
	} else {
		for _, name := range members {
			m, ok := lookupMember(info, name)
			if !ok {
				return nil, invalidArgument("type %s has no member %q", info.Type.Name(), name)
			}
			set = append(set, m)
		}
	}
	if len(set) == 0 {
		return nil, invalidArgument("no members to update in %s", table)
	}

	f := Text("UPDATE " + table + " SET ")
	for i, m := range set {
		if i > 0 {
			f.AppendText(",")
		}
		f.AppendText(columnName(m) + "=")
		appendValue(f, m.Get(v).Interface())
	}
	f.AppendText(" WHERE " + columnName(id) + "=")
	appendValue(f, id.Get(v).Interface())
	return f, nil
}

func columnName(m *typeinfo.Member) string {
	return strings.TrimPrefix(m.Name, "_")
}

// appendValue appends v as a parameter, or as the text NULL when v is nil.
func appendValue(f *Fragment, v any) {
	if isNil(v) {
		f.AppendText("NULL")
		return
	}
	f.AppendParameter(v)
}

// Len returns the number of registered statements.
func (u *Updater) Len() int {
	return len(u.stmts)
}

// Err returns the first error recorded by Update.
func (u *Updater) Err() error {
	return u.err
}

// Fragment implements Expr. It renders every registered statement, each
// terminated by ";", sharing one parameter numbering.
func (u *Updater) Fragment() *Fragment {
	f := &Fragment{}
	if u.err != nil {
		f.setErr(u.err)
		return f
	}
	for _, stmt := range u.stmts {
		f.AppendFragment(stmt).AppendText(";")
	}
	return f
}

// Render renders all the statements with parameter numbering starting at
// zero.
func (u *Updater) Render(d Dialect) (string, Bindings, error) {
	return u.Fragment().Render(d)
}

// Exec runs the registered statements one by one and returns the number of
// rows affected. Pass a [TX] to apply them atomically.
func (u *Updater) Exec(ctx context.Context, ex Executor) (int64, error) {
	if u.err != nil {
		return 0, u.err
	}
	var total int64
	for _, stmt := range u.stmts {
		n, err := execAffected(ctx, ex, stmt)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func execAffected(ctx context.Context, ex Executor, e Expr) (int64, error) {
	res, err := ex.Exec(ctx, e)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "cannot get rows affected")
	}
	return n, nil
}

// MassUpdater updates the same members of many objects of type T with a
// single PostgreSQL statement of the form
//
//	UPDATE t SET a=v.a,b=v.b FROM (VALUES (:p0,:p1,:p2),…) AS v(a,b,id) WHERE t.id=v.id
type MassUpdater[T any] struct {
	table   string
	id      *typeinfo.Member
	members []*typeinfo.Member
	rows    []T
	err     error
}

// NewMassUpdater returns a MassUpdater writing members of T to table, with
// rows selected by idMember.
func NewMassUpdater[T any](table string, idMember string, members ...string) *MassUpdater[T] {
	return NewMassUpdaterWith[T](nil, table, idMember, members...)
}

// NewMassUpdaterWith is NewMassUpdater with an explicit type cache. A nil
// cache means the process wide one.
func NewMassUpdaterWith[T any](types *TypeCache, table string, idMember string, members ...string) *MassUpdater[T] {
	if types == nil {
		types = typeinfo.DefaultCache()
	}
	u := &MassUpdater[T]{table: table}
	info, err := types.Info(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		u.err = invalidArgument("%s", err)
		return u
	}
	id, ok := lookupMember(info, idMember)
	if !ok {
		u.err = invalidArgument("type %s has no member %q", info.Type.Name(), idMember)
		return u
	}
	u.id = id
	if len(members) == 0 {
		u.err = invalidArgument("no members to update in %s", table)
		return u
	}
	for _, name := range members {
		m, ok := lookupMember(info, name)
		if !ok {
			u.err = invalidArgument("type %s has no member %q", info.Type.Name(), name)
			return u
		}
		u.members = append(u.members, m)
	}
	return u
}

// Add registers objects to be updated.
func (u *MassUpdater[T]) Add(objs ...T) *MassUpdater[T] {
	u.rows = append(u.rows, objs...)
	return u
}

// Len returns the number of registered objects.
func (u *MassUpdater[T]) Len() int {
	return len(u.rows)
}

// Err returns the error met while resolving the members, if any.
func (u *MassUpdater[T]) Err() error {
	return u.err
}

// Fragment implements Expr.
func (u *MassUpdater[T]) Fragment() *Fragment {
	f := &Fragment{}
	if u.err != nil {
		f.setErr(u.err)
		return f
	}
	if len(u.rows) == 0 {
		f.setErr(invalidOperation("no objects to update in %s", u.table))
		return f
	}
	const values = "v"
	f.AppendText("UPDATE " + u.table + " SET ")
	for i, m := range u.members {
		if i > 0 {
			f.AppendText(",")
		}
		col := columnName(m)
		f.AppendText(col + "=" + values + "." + col)
	}
	f.AppendText(" FROM (VALUES ")
	for r := range u.rows {
		if r > 0 {
			f.AppendText(",")
		}
		v := reflect.ValueOf(&u.rows[r]).Elem()
		f.AppendText("(")
		for _, m := range u.members {
			appendValue(f, m.Get(v).Interface())
			f.AppendText(",")
		}
		appendValue(f, u.id.Get(v).Interface())
		f.AppendText(")")
	}
	f.AppendText(") AS " + values + "(")
	for _, m := range u.members {
		f.AppendText(columnName(m) + ",")
	}
	id := columnName(u.id)
	f.AppendText(id + ") WHERE " + u.table + "." + id + "=" + values + "." + id)
	return f
}

// Render renders the statement with parameter numbering starting at zero.
func (u *MassUpdater[T]) Render(d Dialect) (string, Bindings, error) {
	return u.Fragment().Render(d)
}

// Exec runs the statement and returns the number of rows affected. It does
// nothing when no objects were added.
func (u *MassUpdater[T]) Exec(ctx context.Context, ex Executor) (int64, error) {
	if u.err != nil {
		return 0, u.err
	}
	if len(u.rows) == 0 {
		return 0, nil
	}
	return execAffected(ctx, ex, u)
}
