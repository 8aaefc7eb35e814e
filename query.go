// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"strconv"
	"strings"

	"github.com/canonical/sqlbuilder/internal/typeinfo"
)

// TypeCache caches the member mapping of struct types. The zero value is
// not usable; create one with NewTypeCache.
type TypeCache = typeinfo.Cache

// NewTypeCache returns an empty TypeCache.
func NewTypeCache() *TypeCache {
	return typeinfo.NewCache()
}

// QueryBuilder accumulates the clauses of a SELECT statement. It is a mutable
// builder meant for a single owner; rendering does not modify it, so a
// completed builder can be rendered any number of times.
//
// Errors from builder methods are recorded and returned by Render.
type QueryBuilder struct {
	from        Fragment
	projections []*Projection
	joins       []*joinedTable
	where       *Condition
	groups      []*Fragment
	orders      []*ordering

	offset, limit       int
	hasOffset, hasLimit bool

	types *TypeCache
	err   error
}

// NewQuery returns a builder selecting from table.
func NewQuery(table string) *QueryBuilder {
	q := &QueryBuilder{types: typeinfo.DefaultCache()}
	q.from.AppendText(table)
	return q
}

// NewSubquery returns a builder selecting from the aliased subquery sub,
// rendered as "(<sub>) AS alias". Parameters of sub are numbered together
// with those of the outer query.
func NewSubquery(sub Expr, alias string) *QueryBuilder {
	q := &QueryBuilder{types: typeinfo.DefaultCache()}
	q.from.AppendText("(")
	q.from.AppendFragment(sub)
	q.from.AppendText(") AS " + alias)
	return q
}

// UseTypeCache sets the cache used to look up struct members.
func (q *QueryBuilder) UseTypeCache(c *TypeCache) *QueryBuilder {
	q.types = c
	return q
}

// Err returns the first error recorded by the builder.
func (q *QueryBuilder) Err() error {
	if q.err != nil {
		return q.err
	}
	return q.from.err
}

func (q *QueryBuilder) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Select adds one or more comma separated columns to the SELECT clause. A
// column written as "expr AS alias" is aliased.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	for _, col := range strings.Split(columns, ",") {
		q.projections = append(q.projections, parseProjection(col))
	}
	return q
}

// SelectProjection adds copies of the projections to the SELECT clause.
func (q *QueryBuilder) SelectProjection(ps ...*Projection) *QueryBuilder {
	for _, p := range ps {
		if p == nil {
			q.setErr(invalidArgument("cannot select nil projection"))
			continue
		}
		q.projections = append(q.projections, p.clone())
	}
	return q
}

// SelectColumnsOf selects the named members of the struct type of sample,
// or every member if none are named. Columns are qualified with tableAlias
// unless it is empty. A leading underscore is removed from member names.
func (q *QueryBuilder) SelectColumnsOf(sample any, tableAlias string, members ...string) *QueryBuilder {
	info, err := q.types.TypeInfo(sample)
	if err != nil {
		q.setErr(invalidArgument("%s", err))
		return q
	}
	if len(members) == 0 {
		members = info.Names()
	}
	for _, name := range members {
		m, ok := info.Member(name)
		if !ok {
			q.setErr(invalidArgument("type %s has no member %q", info.Type.Name(), name))
			return q
		}
		col := strings.TrimPrefix(m.Name, "_")
		if tableAlias != "" {
			col = tableAlias + "." + col
		}
		q.projections = append(q.projections, Column(col))
	}
	return q
}

// RemoveSelectionsNotOf drops every projection whose name matches no member
// of the struct type of sample. A projection matching a member only through
// its underscore prefixed name is aliased to that name.
func (q *QueryBuilder) RemoveSelectionsNotOf(sample any) *QueryBuilder {
	info, err := q.types.TypeInfo(sample)
	if err != nil {
		q.setErr(invalidArgument("%s", err))
		return q
	}
	var kept []*Projection
	for _, p := range q.projections {
		name := p.Name()
		m, ok := info.Member(name)
		if !ok {
			continue
		}
		if m.Name != name {
			p = p.clone().As(m.Name)
		}
		kept = append(kept, p)
	}
	q.projections = kept
	return q
}

// ResetSelects empties the SELECT clause.
func (q *QueryBuilder) ResetSelects() *QueryBuilder {
	q.projections = nil
	return q
}

// Projections returns the selected projections in order.
func (q *QueryBuilder) Projections() []*Projection {
	ps := make([]*Projection, len(q.projections))
	copy(ps, q.projections)
	return ps
}

// Join adds "<kind> table ON column1=column2". Joining a table that is
// already joined does nothing.
func (q *QueryBuilder) Join(table, column1, column2 string, kind JoinKind) *QueryBuilder {
	return q.JoinOn(table, Cond(column1+"="+column2), kind)
}

// JoinOn adds "<kind> table ON <on>". Joining a table that is already joined
// does nothing.
func (q *QueryBuilder) JoinOn(table string, on Expr, kind JoinKind) *QueryBuilder {
	if isNil(on) {
		q.setErr(invalidArgument("cannot join %s on nil condition", table))
		return q
	}
	if q.HasJoin(table) {
		return q
	}
	q.joins = append(q.joins, &joinedTable{table: table, kind: kind, on: NewCondition(on)})
	return q
}

// HasJoin reports whether table is already joined.
func (q *QueryBuilder) HasJoin(table string) bool {
	for _, j := range q.joins {
		if j.table == table {
			return true
		}
	}
	return false
}

// Where ANDs cond to the WHERE clause.
func (q *QueryBuilder) Where(cond Expr) *QueryBuilder {
	if isNil(cond) {
		q.setErr(invalidArgument("cannot add nil condition"))
		return q
	}
	if q.where == nil {
		q.where = NewCondition(cond)
		return q
	}
	q.where = q.where.And(cond)
	return q
}

// Or ORs cond to the WHERE clause.
func (q *QueryBuilder) Or(cond Expr) *QueryBuilder {
	if q.where == nil {
		return q.Where(cond)
	}
	if isNil(cond) {
		q.setErr(invalidArgument("cannot add nil condition"))
		return q
	}
	q.where = q.where.Or(cond)
	return q
}

// GroupBy adds one or more comma separated columns to the GROUP BY clause.
// An alias written with AS is ignored.
func (q *QueryBuilder) GroupBy(columns string) *QueryBuilder {
	for _, col := range strings.Split(columns, ",") {
		q.groups = append(q.groups, parseProjection(col).expr.Clone())
	}
	return q
}

// GroupByFragment adds an expression to the GROUP BY clause.
func (q *QueryBuilder) GroupByFragment(e Expr) *QueryBuilder {
	q.groups = append(q.groups, (&Fragment{}).AppendFragment(e))
	return q
}

// ResetGroups empties the GROUP BY clause.
func (q *QueryBuilder) ResetGroups() *QueryBuilder {
	q.groups = nil
	return q
}

// OrderBy adds one or more comma separated columns to the ORDER BY clause.
func (q *QueryBuilder) OrderBy(columns string) *QueryBuilder {
	for _, col := range strings.Split(columns, ",") {
		q.orders = append(q.orders, &ordering{expr: *Text(strings.TrimSpace(col))})
	}
	return q
}

// OrderByDesc adds a descending column to the ORDER BY clause.
func (q *QueryBuilder) OrderByDesc(column string) *QueryBuilder {
	q.orders = append(q.orders, &ordering{expr: *Text(strings.TrimSpace(column)), desc: true})
	return q
}

// OrderByFragment adds an expression to the ORDER BY clause.
func (q *QueryBuilder) OrderByFragment(e Expr, desc bool) *QueryBuilder {
	o := &ordering{desc: desc}
	o.expr.AppendFragment(e)
	q.orders = append(q.orders, o)
	return q
}

// ResetOrderBy empties the ORDER BY clause.
func (q *QueryBuilder) ResetOrderBy() *QueryBuilder {
	q.orders = nil
	return q
}

// Offset sets the OFFSET clause. Zero is a valid offset.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	if n < 0 {
		q.setErr(invalidArgument("negative offset %d", n))
		return q
	}
	q.offset, q.hasOffset = n, true
	return q
}

// Limit sets the LIMIT clause. Zero is a valid limit.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	if n < 0 {
		q.setErr(invalidArgument("negative limit %d", n))
		return q
	}
	q.limit, q.hasLimit = n, true
	return q
}

// Fragment implements Expr, returning the whole statement. A builder error is
// carried by the fragment and reported when it is rendered.
func (q *QueryBuilder) Fragment() *Fragment {
	f := &Fragment{}
	if err := q.Err(); err != nil {
		f.setErr(err)
		return f
	}
	if len(q.projections) == 0 {
		f.setErr(invalidOperation("no SELECT columns specified"))
		return f
	}

	f.AppendText("SELECT ")
	for i, p := range q.projections {
		if i > 0 {
			f.AppendText(", ")
		}
		f.AppendFragment(p)
	}

	if !q.from.IsEmpty() {
		f.AppendText(" FROM ")
		f.AppendFragment(&q.from)
	}

	for _, j := range q.joins {
		f.AppendText(" ")
		f.AppendFragment(j)
	}

	if !q.where.IsEmpty() {
		f.AppendText(" WHERE ")
		f.AppendFragment(q.where)
	}

	if len(q.groups) > 0 {
		f.AppendText(" GROUP BY ")
		for i, g := range q.groups {
			if i > 0 {
				f.AppendText(", ")
			}
			f.AppendFragment(g)
		}
	}

	if len(q.orders) > 0 {
		f.AppendText(" ORDER BY ")
		for i, o := range q.orders {
			if i > 0 {
				f.AppendText(", ")
			}
			f.AppendFragment(o)
		}
	}

	if q.hasOffset {
		f.AppendText(" OFFSET " + strconv.Itoa(q.offset))
	}
	if q.hasLimit {
		f.AppendText(" LIMIT " + strconv.Itoa(q.limit))
	}
	return f
}

// Render renders the statement with parameter numbering starting at zero.
func (q *QueryBuilder) Render(d Dialect) (string, Bindings, error) {
	return q.Fragment().Render(d)
}

// String renders the statement with the default dialect, for debugging.
func (q *QueryBuilder) String() string {
	return q.Fragment().String()
}
