// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"reflect"
)

// The comparison helpers below take the left hand side as either column text
// (a string) or any Expr. The right hand side is bound as a parameter unless
// it is an Expr, in which case it is embedded as SQL:
//
//	EqualTo("t.name", "fred")            // t.name=:p0
//	EqualTo("t.owner", Text("u.id"))     // t.owner=u.id

// EqualTo builds left=right.
func EqualTo(left, right any) *Condition {
	return comparison(left, "=", right)
}

// NotEqualTo builds left!=right.
func NotEqualTo(left, right any) *Condition {
	return comparison(left, "!=", right)
}

// LessThan builds left<right.
func LessThan(left, right any) *Condition {
	return comparison(left, "<", right)
}

// LessOrEqual builds left<=right.
func LessOrEqual(left, right any) *Condition {
	return comparison(left, "<=", right)
}

// GreaterThan builds left>right.
func GreaterThan(left, right any) *Condition {
	return comparison(left, ">", right)
}

// GreaterOrEqual builds left>=right.
func GreaterOrEqual(left, right any) *Condition {
	return comparison(left, ">=", right)
}

// Like builds left LIKE right.
func Like(left, right any) *Condition {
	return comparison(left, " LIKE ", right)
}

// Compare builds a comparison with an arbitrary operator, written with a
// space on each side: Compare("v", "@@", q) renders v @@ q.
func Compare(left any, operator string, right any) *Condition {
	return comparison(left, " "+operator+" ", right)
}

// Between builds left BETWEEN low AND high.
func Between(left, low, high any) *Condition {
	return CompositeComparison(left, "BETWEEN", low, "AND", high)
}

// CompositeComparison builds left op1 v1 op2 v2, the shape shared by BETWEEN
// and similar ternary operators.
func CompositeComparison(left any, op1 string, v1 any, op2 string, v2 any) *Condition {
	c := &Condition{}
	appendSide(&c.frag, left)
	c.frag.AppendText(" " + op1 + " ")
	appendOperandValue(&c.frag, v1)
	c.frag.AppendText(" " + op2 + " ")
	appendOperandValue(&c.frag, v2)
	return c
}

// In builds left IN (...) with one parameter per element of values, which
// must be a slice or an array. Nil elements render as NULL. An empty list has
// no valid SQL and is an error.
func In(left any, values any) *Condition {
	c := &Condition{}
	appendSide(&c.frag, left)
	list, err := ParamList(values)
	if err != nil {
		c.frag.setErr(err)
		return c
	}
	c.frag.AppendText(" IN ")
	c.frag.AppendFragment(list)
	return c
}

// IsNull builds left IS NULL.
func IsNull(left any) *Condition {
	c := &Condition{}
	appendSide(&c.frag, left)
	c.frag.AppendText(" IS NULL")
	return c
}

// IsNotNull builds left IS NOT NULL.
func IsNotNull(left any) *Condition {
	c := &Condition{}
	appendSide(&c.frag, left)
	c.frag.AppendText(" IS NOT NULL")
	return c
}

// ParamList builds a parenthesized, comma separated parameter list from a
// slice or array. Nil elements are written as NULL.
func ParamList(values any) (*Fragment, error) {
	v := reflect.ValueOf(values)
	if !v.IsValid() || (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) {
		return nil, invalidArgument("need slice or array of values, got %T", values)
	}
	if v.Len() == 0 {
		return nil, invalidArgument("cannot build parameter list from empty list")
	}
	f := Text("(")
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			f.AppendText(",")
		}
		elem := v.Index(i).Interface()
		if isNil(elem) {
			f.AppendText("NULL")
		} else {
			f.AppendParameter(elem)
		}
	}
	f.AppendText(")")
	return f, nil
}

func comparison(left any, op string, right any) *Condition {
	c := &Condition{}
	appendSide(&c.frag, left)
	c.frag.AppendText(op)
	appendOperandValue(&c.frag, right)
	return c
}

// appendSide appends column text or an expression.
func appendSide(f *Fragment, side any) {
	switch s := side.(type) {
	case string:
		f.AppendText(s)
	case Expr:
		f.AppendFragment(s)
	default:
		f.setErr(invalidArgument("need column text or expression, got %T", side))
	}
}

// appendOperandValue embeds an expression or binds a value as a parameter.
func appendOperandValue(f *Fragment, v any) {
	if e, ok := v.(Expr); ok {
		f.AppendFragment(e)
		return
	}
	f.AppendParameter(v)
}
