package sqlbuilder_test

import (
	"database/sql"
	"errors"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbuilder"
)

type FragmentSuite struct{}

var _ = Suite(&FragmentSuite{})

func (s *FragmentSuite) TestRender(c *C) {
	tests := []struct {
		summary  string
		fragment *sqlbuilder.Fragment
		sql      string
		bindings map[string]any
	}{{
		summary:  "text only",
		fragment: sqlbuilder.Text("SELECT 1"),
		sql:      "SELECT 1",
		bindings: map[string]any{},
	}, {
		summary:  "parameters in order",
		fragment: sqlbuilder.Text("a=").AppendParameter("x").AppendText(" AND b=").AppendParameter(2),
		sql:      "a=:p0 AND b=:p1",
		bindings: map[string]any{"p0": "x", "p1": 2},
	}, {
		summary:  "same value shares one parameter",
		fragment: sqlbuilder.Text("a=").AppendParameter("x").AppendText(" OR b=").AppendParameter("x"),
		sql:      "a=:p0 OR b=:p0",
		bindings: map[string]any{"p0": "x"},
	}, {
		summary:  "equal values of different types are distinct",
		fragment: sqlbuilder.Text("a=").AppendParameter(1).AppendText(" OR b=").AppendParameter(int64(1)),
		sql:      "a=:p0 OR b=:p1",
		bindings: map[string]any{"p0": 1, "p1": int64(1)},
	}, {
		summary: "nested fragments",
		fragment: sqlbuilder.Text("x IN (").
			AppendFragment(sqlbuilder.Text("SELECT id FROM t WHERE v=").AppendParameter(7)).
			AppendText(") AND y=").AppendParameter(7),
		sql:      "x IN (SELECT id FROM t WHERE v=:p0) AND y=:p0",
		bindings: map[string]any{"p0": 7},
	}, {
		summary:  "prepend",
		fragment: sqlbuilder.Text("=").AppendParameter("b").PrependParameter("a").PrependText("WHERE "),
		sql:      "WHERE :p0=:p1",
		bindings: map[string]any{"p0": "a", "p1": "b"},
	}, {
		summary:  "prepend fragment",
		fragment: sqlbuilder.Textf(" LIMIT %d", 5).PrependFragment(sqlbuilder.Text("SELECT 1")),
		sql:      "SELECT 1 LIMIT 5",
		bindings: map[string]any{},
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		sql, bindings := render(c, t.fragment)
		c.Check(sql, Equals, t.sql)
		c.Check(bindings, DeepEquals, t.bindings)
	}
}

func (s *FragmentSuite) TestParameterDedup(c *C) {
	v := "abc"
	f := sqlbuilder.Text("a=").AppendParameter(v).AppendText(" AND b=").AppendParameter(v)
	sql, bindings, err := f.Render(sqlbuilder.DefaultDialect)
	c.Assert(err, IsNil)
	c.Assert(sql, Equals, "a=:p0 AND b=:p0")
	c.Assert(bindings, DeepEquals, sqlbuilder.Bindings{{Name: "p0", Value: "abc"}})
}

func (s *FragmentSuite) TestUncomparableValuesNotShared(c *C) {
	blob := []byte("x")
	f := sqlbuilder.Text("a=").AppendParameter(blob).AppendText(" AND b=").AppendParameter(blob)
	sql, bindings, err := f.Render(sqlbuilder.DefaultDialect)
	c.Assert(err, IsNil)
	c.Assert(sql, Equals, "a=:p0 AND b=:p1")
	c.Assert(bindings, HasLen, 2)
}

func (s *FragmentSuite) TestRenderAt(c *C) {
	f := sqlbuilder.Text("a=").AppendParameter(1)
	sql, bindings, err := f.RenderAt(3, sqlbuilder.DefaultDialect)
	c.Assert(err, IsNil)
	c.Assert(sql, Equals, "a=:p3")
	c.Assert(bindings.Map(), DeepEquals, map[string]any{"p3": 1})
}

func (s *FragmentSuite) TestRendererSharesNumbering(c *C) {
	r := sqlbuilder.NewRenderer(sqlbuilder.DefaultDialect, 0)
	c.Assert(r.Write(sqlbuilder.Text("UPDATE t SET a=").AppendParameter("x")), IsNil)
	r.WriteText(";")
	c.Assert(r.Write(sqlbuilder.Text("UPDATE t SET b=").AppendParameter("y").AppendText(",c=").AppendParameter("x")), IsNil)
	c.Assert(r.SQL(), Equals, "UPDATE t SET a=:p0;UPDATE t SET b=:p1,c=:p0")
	c.Assert(r.Bindings().Map(), DeepEquals, map[string]any{"p0": "x", "p1": "y"})
}

func (s *FragmentSuite) TestDialects(c *C) {
	f := sqlbuilder.Text("a=").AppendParameter("x").AppendText(" OR b=").AppendParameter("y").AppendText(" OR c=").AppendParameter("x")

	query, bindings, err := f.Render(sqlbuilder.PostgresDialect)
	c.Assert(err, IsNil)
	c.Check(query, Equals, "a=$1 OR b=$2 OR c=$1")
	c.Check(bindings.Args(sqlbuilder.PostgresDialect), DeepEquals, []any{"x", "y"})

	query, bindings, err = f.Render(sqlbuilder.MySQLDialect)
	c.Assert(err, IsNil)
	c.Check(query, Equals, "a=? OR b=? OR c=?")
	c.Check(bindings.Args(sqlbuilder.MySQLDialect), DeepEquals, []any{"x", "y", "x"})

	query, bindings, err = f.Render(sqlbuilder.Dialect{ParamPrefix: "@"})
	c.Assert(err, IsNil)
	c.Check(query, Equals, "a=@p0 OR b=@p1 OR c=@p0")
	c.Check(bindings.Args(sqlbuilder.DefaultDialect), DeepEquals, []any{sql.Named("p0", "x"), sql.Named("p1", "y")})
}

func (s *FragmentSuite) TestCopyOnAppend(c *C) {
	inner := sqlbuilder.Text("b=").AppendParameter(1)
	outer := sqlbuilder.Text("a AND ").AppendFragment(inner)
	inner.AppendText(" AND c=").AppendParameter(2)

	sql, bindings := render(c, outer)
	c.Assert(sql, Equals, "a AND b=:p0")
	c.Assert(bindings, HasLen, 1)
	c.Assert(inner.String(), Equals, "b=:p0 AND c=:p1")

	clone := outer.Clone().AppendText(" AND d")
	c.Assert(outer.String(), Equals, "a AND b=:p0")
	c.Assert(clone.String(), Equals, "a AND b=:p0 AND d")
}

func (s *FragmentSuite) TestIdempotentRender(c *C) {
	f := sqlbuilder.Text("a=").AppendParameter("x").AppendText(" AND b=").AppendParameter(2)
	sql1, bindings1, err := f.Render(sqlbuilder.DefaultDialect)
	c.Assert(err, IsNil)
	sql2, bindings2, err := f.Render(sqlbuilder.DefaultDialect)
	c.Assert(err, IsNil)
	c.Assert(sql1, Equals, sql2)
	c.Assert(bindings1, DeepEquals, bindings2)
}

func (s *FragmentSuite) TestErrors(c *C) {
	tests := []struct {
		summary  string
		fragment *sqlbuilder.Fragment
		err      string
	}{{
		summary:  "nil parameter",
		fragment: sqlbuilder.Text("a=").AppendParameter(nil),
		err:      "cannot append nil parameter, use the text NULL instead: invalid argument",
	}, {
		summary:  "nil pointer parameter",
		fragment: sqlbuilder.Text("a=").PrependParameter((*int)(nil)),
		err:      "cannot prepend nil parameter, use the text NULL instead: invalid argument",
	}, {
		summary:  "nil fragment",
		fragment: sqlbuilder.Text("a").AppendFragment(nil),
		err:      "cannot append nil fragment: invalid argument",
	}, {
		summary:  "nil typed fragment",
		fragment: sqlbuilder.Text("a").PrependFragment((*sqlbuilder.Fragment)(nil)),
		err:      "cannot append nil fragment: invalid argument",
	}, {
		summary:  "error propagates through append",
		fragment: sqlbuilder.Text("x AND ").AppendFragment(sqlbuilder.Param(nil)),
		err:      "cannot append nil parameter, use the text NULL instead: invalid argument",
	}, {
		summary:  "first error is kept",
		fragment: sqlbuilder.Failed(sqlbuilder.ErrNotImplemented).AppendParameter(nil),
		err:      "not implemented",
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		_, _, err := t.fragment.Render(sqlbuilder.DefaultDialect)
		c.Check(err, ErrorMatches, t.err)
		c.Check(t.fragment.Err(), NotNil)
		c.Check(t.fragment.String(), Equals, "!ERROR("+err.Error()+")")
	}

	_, _, err := sqlbuilder.Text("a").AppendParameter(nil).Render(sqlbuilder.DefaultDialect)
	c.Assert(errors.Is(err, sqlbuilder.ErrInvalidArgument), Equals, true)
}

func (s *FragmentSuite) TestIsEmpty(c *C) {
	c.Assert((&sqlbuilder.Fragment{}).IsEmpty(), Equals, true)
	c.Assert((*sqlbuilder.Fragment)(nil).IsEmpty(), Equals, true)
	c.Assert(sqlbuilder.Text("").IsEmpty(), Equals, false)
}
