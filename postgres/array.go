// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package postgres

import (
	"github.com/lib/pq"

	"github.com/canonical/sqlbuilder"
)

// Any returns the condition left = ANY(values) with values, a slice, bound as
// a single array parameter. Unlike sqlbuilder.In the statement text does not
// depend on the number of values and an empty slice matches nothing.
func Any(left any, values any) *sqlbuilder.Condition {
	return sqlbuilder.Compare(left, "=", sqlbuilder.Text("ANY(").AppendParameter(pq.Array(values)).AppendText(")"))
}

// NotAll returns the condition left <> ALL(values), the negation of Any.
func NotAll(left any, values any) *sqlbuilder.Condition {
	return sqlbuilder.Compare(left, "<>", sqlbuilder.Text("ALL(").AppendParameter(pq.Array(values)).AppendText(")"))
}
