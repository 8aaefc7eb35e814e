// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"reflect"
)

// Node is an element of a predicate tree: a member reference, a constant,
// an operator or a subquery. Predicate trees are built with the functions
// below and turned into SQL by a Translator:
//
//	pred := AndAlso(
//		Eq(Member[Store]("Name"), "Fred's"),
//		Ne(nil, Member[Store]("Closed")),
//	)
//
// Function arguments that are not already a Node are taken as constants.
type Node interface {
	node()
}

type memberNode struct {
	typ  reflect.Type
	name string
}

type constNode struct {
	value any
}

type subqueryNode struct {
	query Expr
}

// binaryNode is a comparison or an arithmetic operation.
type binaryNode struct {
	op          string
	left, right Node
}

type logicalNode struct {
	op          string
	left, right Node
}

type notNode struct {
	operand Node
}

type containsNode struct {
	collection Node
	item       Node
}

func (memberNode) node()   {}
func (constNode) node()    {}
func (subqueryNode) node() {}
func (binaryNode) node()   {}
func (logicalNode) node()  {}
func (notNode) node()      {}
func (containsNode) node() {}

// Member references the member called name of the entity type T. The name is
// either a column name from a "db" tag or a Go field name.
func Member[T any](name string) Node {
	return memberNode{typ: reflect.TypeOf((*T)(nil)).Elem(), name: name}
}

// Value is a constant, bound as a parameter when translated. A nil value
// is NULL. An Expr value is embedded as SQL.
func Value(v any) Node {
	return constNode{value: v}
}

// Null is the NULL constant.
func Null() Node {
	return constNode{}
}

// Subquery embeds a query as a parenthesized operand.
func Subquery(q Expr) Node {
	return subqueryNode{query: q}
}

// Eq compares left=right. Comparing with nil translates to IS NULL.
func Eq(left, right any) Node { return binary("=", left, right) }

// Ne compares left!=right. Comparing with nil translates to IS NOT NULL.
func Ne(left, right any) Node { return binary("!=", left, right) }

func Lt(left, right any) Node { return binary("<", left, right) }
func Le(left, right any) Node { return binary("<=", left, right) }
func Gt(left, right any) Node { return binary(">", left, right) }
func Ge(left, right any) Node { return binary(">=", left, right) }

func Add(left, right any) Node { return binary("+", left, right) }
func Sub(left, right any) Node { return binary("-", left, right) }
func Mul(left, right any) Node { return binary("*", left, right) }
func Div(left, right any) Node { return binary("/", left, right) }

// AndAlso is the conjunction of the predicates, combined left to right.
func AndAlso(preds ...Node) Node {
	return logical("AND", preds)
}

// OrElse is the disjunction of the predicates, combined left to right.
func OrElse(preds ...Node) Node {
	return logical("OR", preds)
}

// Not negates a predicate.
func Not(pred Node) Node {
	return notNode{operand: pred}
}

// Contains holds when item is one of the elements of collection. Only
// constant slices and arrays can be translated.
func Contains(collection, item any) Node {
	return containsNode{collection: operand(collection), item: operand(item)}
}

func binary(op string, left, right any) Node {
	return binaryNode{op: op, left: operand(left), right: operand(right)}
}

func logical(op string, preds []Node) Node {
	if len(preds) == 0 {
		return nil
	}
	n := preds[0]
	for _, p := range preds[1:] {
		n = logicalNode{op: op, left: n, right: p}
	}
	return n
}

func operand(v any) Node {
	if n, ok := v.(Node); ok && n != nil {
		return n
	}
	return constNode{value: v}
}

func isComparison(op string) bool {
	switch op {
	case "=", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func isNullNode(n Node) bool {
	c, ok := n.(constNode)
	return ok && isNil(c.value)
}
