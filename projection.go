// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"strconv"
	"strings"
)

// Projection is one selected column or expression, possibly aliased.
type Projection struct {
	expr  Fragment
	alias string
}

// Column returns a projection of the column or expression text.
func Column(text string) *Projection {
	p := &Projection{}
	p.expr.AppendText(text)
	return p
}

// Project returns a projection of an arbitrary expression.
func Project(e Expr) *Projection {
	p := &Projection{}
	p.expr.AppendFragment(e)
	return p
}

// As sets the alias of the projection.
func (p *Projection) As(alias string) *Projection {
	p.alias = alias
	return p
}

// Alias returns the alias of the projection, if any.
func (p *Projection) Alias() string {
	return p.alias
}

// Name is the name results are mapped by: the alias if there is one,
// otherwise the text after the last "." of the rendered expression.
func (p *Projection) Name() string {
	if p.alias != "" {
		return p.alias
	}
	text := p.expr.String()
	if i := strings.LastIndex(text, "."); i >= 0 {
		return text[i+1:]
	}
	return text
}

// Fragment implements Expr.
func (p *Projection) Fragment() *Fragment {
	f := p.expr.Clone()
	if p.alias != "" {
		f.AppendText(" AS " + p.alias)
	}
	return f
}

func (p *Projection) clone() *Projection {
	return &Projection{expr: *p.expr.Clone(), alias: p.alias}
}

// parseProjection splits "expr AS alias", matching AS in any case.
func parseProjection(text string) *Projection {
	lower := strings.ToLower(text)
	if i := strings.LastIndex(lower, " as "); i >= 0 {
		if alias := strings.TrimSpace(text[i+4:]); isAlias(alias) {
			return Column(strings.TrimSpace(text[:i])).As(alias)
		}
	}
	return Column(strings.TrimSpace(text))
}

// isAlias reports whether s can follow AS: a bare or quoted identifier.
func isAlias(s string) bool {
	if s == "" {
		return false
	}
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '`' && s[len(s)-1] == '`') {
		return true
	}
	return !strings.ContainsAny(s, "() \t")
}

// JoinKind is the kind of a JOIN clause.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER JOIN"
	case LeftOuterJoin:
		return "LEFT OUTER JOIN"
	}
	return "JoinKind(" + strconv.Itoa(int(k)) + ")"
}

// joinedTable is one JOIN clause. Joins are identified by table name only.
type joinedTable struct {
	table string
	kind  JoinKind
	on    *Condition
}

func (j *joinedTable) Fragment() *Fragment {
	f := Text(j.kind.String() + " " + j.table + " ON ")
	f.AppendFragment(j.on)
	return f
}

// ordering is one ORDER BY item.
type ordering struct {
	expr Fragment
	desc bool
}

func (o *ordering) Fragment() *Fragment {
	f := o.expr.Clone()
	if o.desc {
		f.AppendText(" DESC")
	}
	return f
}
