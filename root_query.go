// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"reflect"
	"strconv"
)

// RootQuery is a QueryBuilder for queries centred on one entity type T,
// read from a root table. Columns, joins and conditions are expressed with
// the members of T and of the joined entity types.
type RootQuery[T any] struct {
	root    string
	typ     reflect.Type
	qb      *QueryBuilder
	tr      *Translator
	queried []registeredTable
	err     error
}

// NewRootQuery returns a query on table, whose rows are entities of type T.
func NewRootQuery[T any](table string) *RootQuery[T] {
	return NewRootQueryWith[T](table, nil)
}

// NewRootQueryWith is NewRootQuery with an explicit type cache. A nil cache
// means the process wide one.
func NewRootQueryWith[T any](table string, types *TypeCache) *RootQuery[T] {
	tr := NewTranslator(types)
	r := &RootQuery[T]{
		root: table,
		typ:  reflect.TypeOf((*T)(nil)).Elem(),
		qb:   NewQuery(table).UseTypeCache(tr.types),
		tr:   tr,
	}
	r.addQueried(table, r.typ)
	return r
}

func (r *RootQuery[T]) setErr(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *RootQuery[T]) addQueried(alias string, typ reflect.Type) {
	if err := r.tr.Register(alias, typ); err != nil {
		r.setErr(err)
		return
	}
	r.queried = append(r.queried, registeredTable{alias: alias, typ: typ})
}

func (r *RootQuery[T]) queriedType(alias string) (reflect.Type, bool) {
	for _, q := range r.queried {
		if q.alias == alias {
			return q.typ, true
		}
	}
	return nil, false
}

// newAlias returns table if it is not yet queried, otherwise table followed
// by the first free index starting at 2.
func (r *RootQuery[T]) newAlias(table string) string {
	if _, ok := r.queriedType(table); !ok {
		return table
	}
	for i := 2; ; i++ {
		alias := table + strconv.Itoa(i)
		if _, ok := r.queriedType(alias); !ok {
			return alias
		}
	}
}

// Select adds the named members of T to the SELECT clause.
func (r *RootQuery[T]) Select(members ...string) *RootQuery[T] {
	for _, name := range members {
		col, err := memberColumn(r.tr.types, r.root, r.typ, name)
		if err != nil {
			r.setErr(err)
			return r
		}
		r.qb.Select(col)
	}
	return r
}

// SelectAll adds every member of T to the SELECT clause, qualified with the
// root table so that tables joined later cannot make them ambiguous.
func (r *RootQuery[T]) SelectAll() *RootQuery[T] {
	r.qb.SelectColumnsOf(r.typ, r.root)
	return r
}

// Where ANDs the translated predicate to the WHERE clause. The predicate may
// reference members of T and of every joined entity type.
func (r *RootQuery[T]) Where(pred Node) *RootQuery[T] {
	cond, err := r.tr.Translate(pred)
	if err != nil {
		r.setErr(err)
		return r
	}
	r.qb.Where(cond)
	return r
}

// WhereCond ANDs a prebuilt condition to the WHERE clause.
func (r *RootQuery[T]) WhereCond(cond Expr) *RootQuery[T] {
	r.qb.Where(cond)
	return r
}

// Join joins table, whose rows are of the struct type of joined, on
// <root>.rootMember=<alias>.joinedMember and returns the alias of the joined
// table: the table name, or the table name followed by an index if the
// table is already part of the query.
func (r *RootQuery[T]) Join(table string, joined any, rootMember, joinedMember string, kind JoinKind) string {
	return r.JoinFrom(r.root, rootMember, table, joined, joinedMember, kind)
}

// JoinFrom is Join with the left hand column taken from fromAlias, a table
// already part of the query.
func (r *RootQuery[T]) JoinFrom(fromAlias, fromMember, table string, joined any, joinedMember string, kind JoinKind) string {
	fromType, ok := r.queriedType(fromAlias)
	if !ok {
		r.setErr(invalidOperation("the table alias %q has not been queried before", fromAlias))
		return ""
	}
	info, err := r.tr.types.TypeInfo(joined)
	if err != nil {
		r.setErr(invalidArgument("cannot join %s: %s", table, err))
		return ""
	}
	left, err := memberColumn(r.tr.types, fromAlias, fromType, fromMember)
	if err != nil {
		r.setErr(err)
		return ""
	}
	alias := r.newAlias(table)
	right, err := memberColumn(r.tr.types, alias, info.Type, joinedMember)
	if err != nil {
		r.setErr(err)
		return ""
	}
	r.addQueried(alias, info.Type)
	r.qb.Join(joinTarget(table, alias), left, right, kind)
	return alias
}

// JoinWhere joins table, whose rows are of the struct type of joined, on a
// predicate over T, the joined type and any other queried type. A table can
// only be joined this way once.
func (r *RootQuery[T]) JoinWhere(table string, joined any, on Node, kind JoinKind) *RootQuery[T] {
	if _, ok := r.queriedType(table); ok {
		r.setErr(invalidOperation("table %q has already been queried", table))
		return r
	}
	info, err := r.tr.types.TypeInfo(joined)
	if err != nil {
		r.setErr(invalidArgument("cannot join %s: %s", table, err))
		return r
	}
	r.addQueried(table, info.Type)
	cond, err := r.tr.Translate(on)
	if err != nil {
		r.setErr(err)
		return r
	}
	r.qb.JoinOn(table, cond, kind)
	return r
}

func joinTarget(table, alias string) string {
	if table == alias {
		return table
	}
	return table + " " + alias
}

// OrderBy orders the results by the named member of T.
func (r *RootQuery[T]) OrderBy(member string) *RootQuery[T] {
	return r.orderBy(member, false)
}

// OrderByDesc orders the results by the named member of T, descending.
func (r *RootQuery[T]) OrderByDesc(member string) *RootQuery[T] {
	return r.orderBy(member, true)
}

func (r *RootQuery[T]) orderBy(member string, desc bool) *RootQuery[T] {
	col, err := memberColumn(r.tr.types, r.root, r.typ, member)
	if err != nil {
		r.setErr(err)
		return r
	}
	r.qb.OrderByFragment(Text(col), desc)
	return r
}

// Skip sets the OFFSET clause.
func (r *RootQuery[T]) Skip(n int) *RootQuery[T] {
	r.qb.Offset(n)
	return r
}

// Take sets the LIMIT clause.
func (r *RootQuery[T]) Take(n int) *RootQuery[T] {
	r.qb.Limit(n)
	return r
}

// Builder returns the underlying QueryBuilder, for clauses that have no
// typed equivalent.
func (r *RootQuery[T]) Builder() *QueryBuilder {
	return r.qb
}

// Projections returns the selected projections in order.
func (r *RootQuery[T]) Projections() []*Projection {
	return r.qb.Projections()
}

// Err returns the first error recorded by the query.
func (r *RootQuery[T]) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.qb.Err()
}

// Fragment implements Expr.
func (r *RootQuery[T]) Fragment() *Fragment {
	if r.err != nil {
		f := &Fragment{}
		f.setErr(r.err)
		return f
	}
	return r.qb.Fragment()
}

// Render renders the statement with parameter numbering starting at zero.
func (r *RootQuery[T]) Render(d Dialect) (string, Bindings, error) {
	return r.Fragment().Render(d)
}

// String renders the statement with the default dialect, for debugging.
func (r *RootQuery[T]) String() string {
	return r.Fragment().String()
}
