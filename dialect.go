// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"database/sql"
	"strconv"
)

// Dialect controls how parameter placeholders are written in rendered SQL.
type Dialect struct {
	// ParamPrefix is written before every placeholder. With the default
	// dialect placeholders look like ":p0", ":p1".
	ParamPrefix string

	// Positional switches placeholders to the numbered form used by
	// PostgreSQL drivers ("$1", "$2"). Bindings are then passed to the
	// driver in order instead of by name.
	Positional bool

	// Unnumbered writes the bare prefix for every placeholder ("?"). Each
	// occurrence consumes its own argument, so equal values are never
	// shared. Implies Positional.
	Unnumbered bool
}

// DefaultDialect renders ":p0" style named placeholders. It is understood by
// SQLite and by any database/sql driver supporting sql.NamedArg.
var DefaultDialect = Dialect{ParamPrefix: ":"}

// PostgresDialect renders "$1" style placeholders.
var PostgresDialect = Dialect{ParamPrefix: "$", Positional: true}

// MySQLDialect renders "?" placeholders.
var MySQLDialect = Dialect{ParamPrefix: "?", Positional: true, Unnumbered: true}

func (d Dialect) placeholder(index int) string {
	switch {
	case d.Unnumbered:
		return d.ParamPrefix
	case d.Positional:
		return d.ParamPrefix + strconv.Itoa(index+1)
	}
	return d.ParamPrefix + paramName(index)
}

func paramName(index int) string {
	return "p" + strconv.Itoa(index)
}

// Binding is a parameter name in rendered SQL paired with its value.
type Binding struct {
	Name  string
	Value any
}

// Bindings are the parameters of a rendered statement in first occurrence
// order.
type Bindings []Binding

// Args returns the bindings as arguments for the database/sql query methods.
func (b Bindings) Args(d Dialect) []any {
	args := make([]any, 0, len(b))
	for _, binding := range b {
		if d.Positional || d.Unnumbered {
			args = append(args, binding.Value)
		} else {
			args = append(args, sql.Named(binding.Name, binding.Value))
		}
	}
	return args
}

// Map returns the bindings indexed by name.
func (b Bindings) Map() map[string]any {
	m := make(map[string]any, len(b))
	for _, binding := range b {
		m[binding.Name] = binding.Value
	}
	return m
}
