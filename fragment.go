// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"fmt"
	"reflect"
	"strings"
)

// Expr is implemented by every piece of SQL that can be embedded in a
// Fragment: fragments themselves, conditions, projections and query builders.
type Expr interface {
	Fragment() *Fragment
}

type nodeKind int

const (
	textNode nodeKind = iota
	paramNode
	compositeNode
)

// node is one element of a fragment. Nodes are never modified once created,
// so they can be shared freely between fragments.
type node struct {
	kind     nodeKind
	text     string
	value    any
	children []node
}

// Fragment is a composable piece of SQL made of literal text, parameters and
// nested fragments. The zero value is an empty fragment ready to use.
//
// Appending another fragment copies its nodes, so later changes to the
// appended fragment are not seen by this one.
//
// A fragment records the first construction error (a nil parameter or a nil
// fragment) and returns it when rendered.
type Fragment struct {
	nodes []node
	err   error
}

// Text returns a new fragment holding the literal text s.
func Text(s string) *Fragment {
	return (&Fragment{}).AppendText(s)
}

// Textf returns a new fragment holding the formatted text.
func Textf(format string, args ...any) *Fragment {
	return (&Fragment{}).AppendTextf(format, args...)
}

// Param returns a new fragment holding a single parameter.
func Param(v any) *Fragment {
	return (&Fragment{}).AppendParameter(v)
}

// Failed returns an empty fragment carrying err, reported when it or any
// fragment it is appended to is rendered.
func Failed(err error) *Fragment {
	f := &Fragment{}
	f.setErr(err)
	return f
}

// Fragment implements Expr.
func (f *Fragment) Fragment() *Fragment {
	return f
}

// AppendText appends literal SQL text.
func (f *Fragment) AppendText(s string) *Fragment {
	f.nodes = append(f.nodes, node{kind: textNode, text: s})
	return f
}

// AppendTextf appends literal SQL text built with fmt.Sprintf.
func (f *Fragment) AppendTextf(format string, args ...any) *Fragment {
	return f.AppendText(fmt.Sprintf(format, args...))
}

// AppendParameter appends a parameter. A nil value is an error: NULL must be
// appended as the text "NULL".
func (f *Fragment) AppendParameter(v any) *Fragment {
	if isNil(v) {
		f.setErr(invalidArgument("cannot append nil parameter, use the text NULL instead"))
		return f
	}
	f.nodes = append(f.nodes, node{kind: paramNode, value: v})
	return f
}

// AppendFragment appends a copy of e.
func (f *Fragment) AppendFragment(e Expr) *Fragment {
	n, ok := f.compositeOf(e)
	if ok {
		f.nodes = append(f.nodes, n)
	}
	return f
}

// PrependText inserts literal SQL text at the start of the fragment.
func (f *Fragment) PrependText(s string) *Fragment {
	f.prepend(node{kind: textNode, text: s})
	return f
}

// PrependTextf inserts formatted text at the start of the fragment.
func (f *Fragment) PrependTextf(format string, args ...any) *Fragment {
	return f.PrependText(fmt.Sprintf(format, args...))
}

// PrependParameter inserts a parameter at the start of the fragment.
func (f *Fragment) PrependParameter(v any) *Fragment {
	if isNil(v) {
		f.setErr(invalidArgument("cannot prepend nil parameter, use the text NULL instead"))
		return f
	}
	f.prepend(node{kind: paramNode, value: v})
	return f
}

// PrependFragment inserts a copy of e at the start of the fragment.
func (f *Fragment) PrependFragment(e Expr) *Fragment {
	n, ok := f.compositeOf(e)
	if ok {
		f.prepend(n)
	}
	return f
}

// IsEmpty reports whether the fragment renders to nothing.
func (f *Fragment) IsEmpty() bool {
	return f == nil || len(f.nodes) == 0
}

// Err returns the first error recorded while building the fragment.
func (f *Fragment) Err() error {
	return f.err
}

// Clone returns an independent copy of the fragment.
func (f *Fragment) Clone() *Fragment {
	c := &Fragment{err: f.err}
	c.nodes = append(c.nodes, f.nodes...)
	return c
}

// Render renders the fragment with parameter numbering starting at zero.
func (f *Fragment) Render(d Dialect) (string, Bindings, error) {
	return f.RenderAt(0, d)
}

// RenderAt renders the fragment with parameter numbering starting at start.
func (f *Fragment) RenderAt(start int, d Dialect) (string, Bindings, error) {
	r := NewRenderer(d, start)
	if err := r.Write(f); err != nil {
		return "", nil, err
	}
	return r.SQL(), r.Bindings(), nil
}

// String renders the fragment with the default dialect, for debugging.
func (f *Fragment) String() string {
	s, _, err := f.Render(DefaultDialect)
	if err != nil {
		return "!ERROR(" + err.Error() + ")"
	}
	return s
}

func (f *Fragment) prepend(n node) {
	f.nodes = append([]node{n}, f.nodes...)
}

func (f *Fragment) setErr(err error) {
	if f.err == nil {
		f.err = err
	}
}

// compositeOf wraps a copy of the nodes of e in a composite node and
// propagates any error recorded by e.
func (f *Fragment) compositeOf(e Expr) (node, bool) {
	if isNil(e) {
		f.setErr(invalidArgument("cannot append nil fragment"))
		return node{}, false
	}
	other := e.Fragment()
	if other == nil {
		f.setErr(invalidArgument("cannot append nil fragment"))
		return node{}, false
	}
	if other.err != nil {
		f.setErr(other.err)
	}
	children := make([]node, len(other.nodes))
	copy(children, other.nodes)
	return node{kind: compositeNode, children: children}, true
}

// Renderer accumulates the SQL text and parameter bindings of one statement.
// Parameters with equal comparable values share a single binding.
type Renderer struct {
	dialect  Dialect
	next     int
	sb       strings.Builder
	bindings Bindings
	seen     map[any]int
}

// NewRenderer returns a Renderer whose first parameter has index start.
func NewRenderer(d Dialect, start int) *Renderer {
	return &Renderer{
		dialect: d,
		next:    start,
		seen:    map[any]int{},
	}
}

// Write renders e onto the statement.
func (r *Renderer) Write(e Expr) error {
	if isNil(e) {
		return invalidArgument("cannot render nil fragment")
	}
	f := e.Fragment()
	if f == nil {
		return invalidArgument("cannot render nil fragment")
	}
	if f.err != nil {
		return f.err
	}
	r.writeNodes(f.nodes)
	return nil
}

// WriteText writes literal text onto the statement.
func (r *Renderer) WriteText(s string) {
	r.sb.WriteString(s)
}

// SQL returns the text rendered so far.
func (r *Renderer) SQL() string {
	return r.sb.String()
}

// Bindings returns the parameters rendered so far.
func (r *Renderer) Bindings() Bindings {
	return append(Bindings(nil), r.bindings...)
}

func (r *Renderer) writeNodes(nodes []node) {
	for _, n := range nodes {
		switch n.kind {
		case textNode:
			r.sb.WriteString(n.text)
		case paramNode:
			r.sb.WriteString(r.param(n.value))
		case compositeNode:
			r.writeNodes(n.children)
		}
	}
}

// param returns the placeholder for v, allocating a new binding the first
// time a value is seen.
func (r *Renderer) param(v any) string {
	canShare := !r.dialect.Unnumbered && reflect.ValueOf(v).Comparable()
	if canShare {
		if index, ok := r.seen[v]; ok {
			return r.dialect.placeholder(index)
		}
	}
	index := r.next
	r.next++
	r.bindings = append(r.bindings, Binding{Name: paramName(index), Value: v})
	if canShare {
		r.seen[v] = index
	}
	return r.dialect.placeholder(index)
}

// isNil reports whether v is nil or a nil pointer, map, slice or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
