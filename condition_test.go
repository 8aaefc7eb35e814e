package sqlbuilder_test

import (
	"errors"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbuilder"
)

type ConditionSuite struct{}

var _ = Suite(&ConditionSuite{})

func (s *ConditionSuite) TestComparisons(c *C) {
	tests := []struct {
		summary   string
		condition *sqlbuilder.Condition
		sql       string
		bindings  map[string]any
	}{{
		summary:   "equal to",
		condition: sqlbuilder.EqualTo("test_table.prop1", "abc"),
		sql:       "test_table.prop1=:p0",
		bindings:  map[string]any{"p0": "abc"},
	}, {
		summary:   "not equal to",
		condition: sqlbuilder.NotEqualTo("t.a", 1),
		sql:       "t.a!=:p0",
		bindings:  map[string]any{"p0": 1},
	}, {
		summary:   "less than",
		condition: sqlbuilder.LessThan("t.a", 1),
		sql:       "t.a<:p0",
		bindings:  map[string]any{"p0": 1},
	}, {
		summary:   "less or equal",
		condition: sqlbuilder.LessOrEqual("t.a", 1),
		sql:       "t.a<=:p0",
		bindings:  map[string]any{"p0": 1},
	}, {
		summary:   "greater than",
		condition: sqlbuilder.GreaterThan("t.a", 1),
		sql:       "t.a>:p0",
		bindings:  map[string]any{"p0": 1},
	}, {
		summary:   "greater or equal",
		condition: sqlbuilder.GreaterOrEqual("t.a", 1),
		sql:       "t.a>=:p0",
		bindings:  map[string]any{"p0": 1},
	}, {
		summary:   "like",
		condition: sqlbuilder.Like("t.name", "F%"),
		sql:       "t.name LIKE :p0",
		bindings:  map[string]any{"p0": "F%"},
	}, {
		summary:   "right hand expression",
		condition: sqlbuilder.EqualTo("t.owner", sqlbuilder.Text("u.id")),
		sql:       "t.owner=u.id",
		bindings:  map[string]any{},
	}, {
		summary:   "left hand expression",
		condition: sqlbuilder.GreaterThan(sqlbuilder.Text("LENGTH(t.name)"), 3),
		sql:       "LENGTH(t.name)>:p0",
		bindings:  map[string]any{"p0": 3},
	}, {
		summary:   "arbitrary operator",
		condition: sqlbuilder.Compare("t.tags", "&&", sqlbuilder.Text("u.tags")),
		sql:       "t.tags && u.tags",
		bindings:  map[string]any{},
	}, {
		summary:   "between",
		condition: sqlbuilder.Between("t.a", 1, 10),
		sql:       "t.a BETWEEN :p0 AND :p1",
		bindings:  map[string]any{"p0": 1, "p1": 10},
	}, {
		summary:   "in with nulls",
		condition: sqlbuilder.In("col", []any{1, nil, 3}),
		sql:       "col IN (:p0,NULL,:p1)",
		bindings:  map[string]any{"p0": 1, "p1": 3},
	}, {
		summary:   "in with array",
		condition: sqlbuilder.In("col", [2]string{"a", "a"}),
		sql:       "col IN (:p0,:p0)",
		bindings:  map[string]any{"p0": "a"},
	}, {
		summary:   "is null",
		condition: sqlbuilder.IsNull("t.a"),
		sql:       "t.a IS NULL",
		bindings:  map[string]any{},
	}, {
		summary:   "is not null",
		condition: sqlbuilder.IsNotNull("t.a"),
		sql:       "t.a IS NOT NULL",
		bindings:  map[string]any{},
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		sql, bindings := render(c, t.condition)
		c.Check(sql, Equals, t.sql)
		c.Check(bindings, DeepEquals, t.bindings)
	}
}

func (s *ConditionSuite) TestInWithNullsBindings(c *C) {
	_, bindings, err := sqlbuilder.In("col", []any{1, nil, 3}).Fragment().Render(sqlbuilder.DefaultDialect)
	c.Assert(err, IsNil)
	c.Assert(bindings, HasLen, 2)
}

func (s *ConditionSuite) TestCombine(c *C) {
	a := sqlbuilder.EqualTo("t.a", 1)
	b := sqlbuilder.EqualTo("t.b", 2)
	d := sqlbuilder.EqualTo("t.c", 3)

	tests := []struct {
		summary   string
		condition *sqlbuilder.Condition
		sql       string
	}{{
		summary:   "and",
		condition: a.And(b),
		sql:       "t.a=:p0 AND t.b=:p1",
	}, {
		summary:   "left associative",
		condition: a.And(b).Or(d),
		sql:       "(t.a=:p0 AND t.b=:p1) OR t.c=:p2",
	}, {
		summary:   "combination on the right",
		condition: a.Or(b.And(d)),
		sql:       "t.a=:p0 OR (t.b=:p1 AND t.c=:p2)",
	}, {
		summary:   "raw conditions are parenthesized",
		condition: sqlbuilder.Cond("x OR y").And(a),
		sql:       "(x OR y) AND t.a=:p0",
	}, {
		summary:   "fragments are parenthesized",
		condition: a.Or(sqlbuilder.Text("z=").AppendParameter(1)),
		sql:       "t.a=:p0 OR (z=:p0)",
	}, {
		summary:   "empty left",
		condition: (&sqlbuilder.Condition{}).And(a),
		sql:       "t.a=:p0",
	}, {
		summary:   "nil left",
		condition: (*sqlbuilder.Condition)(nil).Or(a),
		sql:       "t.a=:p0",
	}, {
		summary:   "empty right",
		condition: a.And(&sqlbuilder.Condition{}),
		sql:       "t.a=:p0",
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		sql, _ := render(c, t.condition)
		c.Check(sql, Equals, t.sql)
	}

	// Operands are left untouched.
	c.Assert(a.String(), Equals, "t.a=:p0")
	c.Assert(b.String(), Equals, "t.b=:p0")
}

func (s *ConditionSuite) TestErrors(c *C) {
	tests := []struct {
		summary   string
		condition *sqlbuilder.Condition
		err       string
		kind      error
	}{{
		summary:   "empty in list",
		condition: sqlbuilder.In("col", []int{}),
		err:       "cannot build parameter list from empty list: invalid argument",
		kind:      sqlbuilder.ErrInvalidArgument,
	}, {
		summary:   "in with non-list",
		condition: sqlbuilder.In("col", 5),
		err:       "need slice or array of values, got int: invalid argument",
		kind:      sqlbuilder.ErrInvalidArgument,
	}, {
		summary:   "nil value",
		condition: sqlbuilder.EqualTo("col", nil),
		err:       "cannot append nil parameter, use the text NULL instead: invalid argument",
		kind:      sqlbuilder.ErrInvalidArgument,
	}, {
		summary:   "bad left side",
		condition: sqlbuilder.EqualTo(5, 5),
		err:       "need column text or expression, got int: invalid argument",
		kind:      sqlbuilder.ErrInvalidArgument,
	}, {
		summary:   "combine with nil",
		condition: sqlbuilder.EqualTo("a", 1).And(nil),
		err:       "cannot combine with nil condition: invalid argument",
		kind:      sqlbuilder.ErrInvalidArgument,
	}, {
		summary:   "error of an operand is kept",
		condition: sqlbuilder.EqualTo("a", 1).Or(sqlbuilder.In("b", []int{})),
		err:       "cannot build parameter list from empty list: invalid argument",
		kind:      sqlbuilder.ErrInvalidArgument,
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		_, _, err := t.condition.Fragment().Render(sqlbuilder.DefaultDialect)
		c.Check(err, ErrorMatches, t.err)
		c.Check(errors.Is(err, t.kind), Equals, true)
		c.Check(t.condition.Err(), NotNil)
	}
}

func (s *ConditionSuite) TestParamList(c *C) {
	list, err := sqlbuilder.ParamList([]string{"a", "b"})
	c.Assert(err, IsNil)
	sql, bindings := render(c, list)
	c.Assert(sql, Equals, "(:p0,:p1)")
	c.Assert(bindings, DeepEquals, map[string]any{"p0": "a", "p1": "b"})

	_, err = sqlbuilder.ParamList(nil)
	c.Assert(errors.Is(err, sqlbuilder.ErrInvalidArgument), Equals, true)
}
