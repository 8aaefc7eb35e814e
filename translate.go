// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"reflect"
	"strings"

	"github.com/canonical/sqlbuilder/internal/typeinfo"
)

type registeredTable struct {
	alias string
	typ   reflect.Type
}

// Translator turns predicate trees into conditions. Every entity type whose
// members appear in a predicate must first be registered with the alias of
// the table it is queried from.
type Translator struct {
	types  *TypeCache
	tables []registeredTable
}

// NewTranslator returns a Translator looking up members in types. A nil
// cache means the process wide one.
func NewTranslator(types *TypeCache) *Translator {
	if types == nil {
		types = typeinfo.DefaultCache()
	}
	return &Translator{types: types}
}

// Register maps the struct type of sample, which may also be a
// reflect.Type, to a table alias. The first alias registered for a type is
// the one used in translations.
func (t *Translator) Register(alias string, sample any) error {
	info, err := t.types.TypeInfo(sample)
	if err != nil {
		return invalidArgument("cannot register %q: %s", alias, err)
	}
	t.tables = append(t.tables, registeredTable{alias: alias, typ: info.Type})
	return nil
}

func (t *Translator) aliasOf(typ reflect.Type) (string, bool) {
	for _, table := range t.tables {
		if table.typ == typ {
			return table.alias, true
		}
	}
	return "", false
}

// Translate converts a boolean predicate into a condition.
func (t *Translator) Translate(pred Node) (*Condition, error) {
	if pred == nil {
		return nil, invalidArgument("cannot translate nil predicate")
	}
	switch n := pred.(type) {
	case logicalNode:
		left, err := t.Translate(n.left)
		if err != nil {
			return nil, err
		}
		right, err := t.Translate(n.right)
		if err != nil {
			return nil, err
		}
		if n.op == "AND" {
			return left.And(right), nil
		}
		return left.Or(right), nil
	case notNode:
		inner, err := t.Translate(n.operand)
		if err != nil {
			return nil, err
		}
		c := &Condition{}
		c.frag.AppendText("NOT (")
		c.frag.AppendFragment(inner)
		c.frag.AppendText(")")
		return c, nil
	case binaryNode:
		if !isComparison(n.op) {
			return nil, invalidArgument("%q is not a boolean operator", n.op)
		}
		return t.comparison(n)
	case containsNode:
		return t.contains(n)
	case memberNode:
		// A bare member is a boolean column.
		f, err := t.expr(n)
		if err != nil {
			return nil, err
		}
		return NewCondition(f), nil
	}
	return nil, invalidArgument("cannot use %T as a predicate", pred)
}

func (t *Translator) comparison(n binaryNode) (*Condition, error) {
	left, right := n.left, n.right
	if isNullNode(left) {
		left, right = right, left
	}

	c := &Condition{}
	lf, err := t.expr(left)
	if err != nil {
		return nil, err
	}
	c.frag.AppendFragment(lf)

	if isNullNode(right) {
		switch n.op {
		case "=":
			c.frag.AppendText(" IS NULL")
		case "!=":
			c.frag.AppendText(" IS NOT NULL")
		default:
			return nil, invalidArgument("cannot compare with NULL using %q", n.op)
		}
		return c, nil
	}

	rf, err := t.expr(right)
	if err != nil {
		return nil, err
	}
	c.frag.AppendText(n.op)
	c.frag.AppendFragment(rf)
	return c, nil
}

func (t *Translator) contains(n containsNode) (*Condition, error) {
	var values any
	switch coll := n.collection.(type) {
	case constNode:
		values = coll.value
	case memberNode, subqueryNode:
		return nil, notImplemented("Contains over a column or a subquery")
	default:
		return nil, notImplemented("Contains over %T", n.collection)
	}
	if _, ok := values.(Expr); ok {
		return nil, notImplemented("Contains over a SQL expression")
	}

	item, err := t.expr(n.item)
	if err != nil {
		return nil, err
	}
	list, err := ParamList(values)
	if err != nil {
		return nil, err
	}
	c := &Condition{}
	c.frag.AppendFragment(item)
	c.frag.AppendText(" IN ")
	c.frag.AppendFragment(list)
	return c, nil
}

// expr translates a value operand.
func (t *Translator) expr(n Node) (*Fragment, error) {
	switch n := n.(type) {
	case memberNode:
		return t.column(n)
	case constNode:
		if isNil(n.value) {
			return Text("NULL"), nil
		}
		if e, ok := n.value.(Expr); ok {
			return (&Fragment{}).AppendFragment(e), nil
		}
		return Param(n.value), nil
	case subqueryNode:
		if isNil(n.query) {
			return nil, invalidArgument("cannot use nil subquery")
		}
		return Text("(").AppendFragment(n.query).AppendText(")"), nil
	case binaryNode:
		if isComparison(n.op) {
			c, err := t.comparison(n)
			if err != nil {
				return nil, err
			}
			return Text("(").AppendFragment(c).AppendText(")"), nil
		}
		return t.arithmetic(n)
	case logicalNode, notNode, containsNode:
		c, err := t.Translate(n)
		if err != nil {
			return nil, err
		}
		return Text("(").AppendFragment(c).AppendText(")"), nil
	}
	return nil, invalidArgument("cannot translate %T", n)
}

func (t *Translator) arithmetic(n binaryNode) (*Fragment, error) {
	f := &Fragment{}
	for i, side := range []Node{n.left, n.right} {
		if i == 1 {
			f.AppendText(n.op)
		}
		sf, err := t.expr(side)
		if err != nil {
			return nil, err
		}
		if b, ok := side.(binaryNode); ok && !isComparison(b.op) {
			f.AppendText("(").AppendFragment(sf).AppendText(")")
		} else {
			f.AppendFragment(sf)
		}
	}
	return f, nil
}

func (t *Translator) column(n memberNode) (*Fragment, error) {
	alias, ok := t.aliasOf(n.typ)
	if !ok {
		return nil, invalidOperation("table must have been added before: type %s is not registered", n.typ)
	}
	col, err := memberColumn(t.types, alias, n.typ, n.name)
	if err != nil {
		return nil, err
	}
	return Text(col), nil
}

// memberColumn returns "alias.column" for the named member of typ, without
// the leading underscore of the member name. An empty alias leaves the
// column unqualified.
func memberColumn(types *TypeCache, alias string, typ reflect.Type, name string) (string, error) {
	info, err := types.Info(typ)
	if err != nil {
		return "", invalidArgument("%s", err)
	}
	m, ok := info.Member(name)
	if !ok {
		m = fieldMember(info, name)
		if m == nil {
			return "", invalidArgument("type %s has no member %q", typ.Name(), name)
		}
	}
	col := strings.TrimPrefix(m.Name, "_")
	if alias == "" {
		return col, nil
	}
	return alias + "." + col, nil
}

// fieldMember finds a member by its Go field name.
func fieldMember(info *typeinfo.Info, field string) *typeinfo.Member {
	for _, m := range info.Members {
		if m.Field == field {
			return m
		}
	}
	return nil
}
