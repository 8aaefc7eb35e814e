// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

// Condition is a boolean SQL predicate. Conditions are combined with And and
// Or, which return a new Condition and leave both operands untouched so a
// condition can be reused in several statements.
//
// Combining is left associative. An operand that is itself a combination, or
// raw SQL wrapped with Cond, is parenthesized as a unit:
//
//	a.And(b).Or(c) // (a AND b) OR c
type Condition struct {
	frag Fragment
	// compound is set on conditions that must be parenthesized when they
	// take part in a further combination.
	compound bool
}

// Cond wraps raw SQL text as a condition. Raw conditions are always
// parenthesized when combined since their precedence is unknown.
func Cond(text string) *Condition {
	c := &Condition{compound: true}
	c.frag.AppendText(text)
	return c
}

// NewCondition wraps an arbitrary fragment as a condition. A *Condition is
// returned as is.
func NewCondition(e Expr) *Condition {
	if c, ok := e.(*Condition); ok && c != nil {
		return c
	}
	c := &Condition{compound: true}
	c.frag.AppendFragment(e)
	return c
}

// Fragment implements Expr.
func (c *Condition) Fragment() *Fragment {
	return c.frag.Clone()
}

// IsEmpty reports whether the condition has no SQL.
func (c *Condition) IsEmpty() bool {
	return c == nil || c.frag.IsEmpty()
}

// Err returns the first error recorded while building the condition.
func (c *Condition) Err() error {
	return c.frag.err
}

// And returns the conjunction of c and e.
func (c *Condition) And(e Expr) *Condition {
	return c.combine(" AND ", e)
}

// Or returns the disjunction of c and e.
func (c *Condition) Or(e Expr) *Condition {
	return c.combine(" OR ", e)
}

// String renders the condition with the default dialect, for debugging.
func (c *Condition) String() string {
	return c.frag.String()
}

func (c *Condition) clone() *Condition {
	if c == nil {
		return &Condition{}
	}
	return &Condition{frag: *c.frag.Clone(), compound: c.compound}
}

func (c *Condition) combine(op string, e Expr) *Condition {
	if isNil(e) {
		res := c.clone()
		res.frag.setErr(invalidArgument("cannot combine with nil condition"))
		return res
	}
	other := NewCondition(e)
	switch {
	case c.IsEmpty():
		res := other.clone()
		if c != nil && c.frag.err != nil {
			res.frag.setErr(c.frag.err)
		}
		return res
	case other.IsEmpty():
		res := c.clone()
		res.frag.setErr(other.frag.err)
		return res
	}
	res := &Condition{compound: true}
	res.appendOperand(c)
	res.frag.AppendText(op)
	res.appendOperand(other)
	return res
}

func (c *Condition) appendOperand(operand *Condition) {
	if operand.compound {
		c.frag.AppendText("(")
		c.frag.AppendFragment(&operand.frag)
		c.frag.AppendText(")")
		return
	}
	c.frag.AppendFragment(&operand.frag)
}
