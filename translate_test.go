package sqlbuilder_test

import (
	"errors"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbuilder"
)

type TranslateSuite struct{}

var _ = Suite(&TranslateSuite{})

func newTranslator(c *C) *sqlbuilder.Translator {
	tr := sqlbuilder.NewTranslator(nil)
	c.Assert(tr.Register("items", Item{}), IsNil)
	c.Assert(tr.Register("person", &Person{}), IsNil)
	c.Assert(tr.Register("entities", Entity{}), IsNil)
	// Only the first alias of a type is used.
	c.Assert(tr.Register("items2", Item{}), IsNil)
	return tr
}

func (s *TranslateSuite) TestTranslate(c *C) {
	price := sqlbuilder.Member[Item]("price")
	id := sqlbuilder.Member[Item]("id")

	tests := []struct {
		summary  string
		pred     sqlbuilder.Node
		sql      string
		bindings map[string]any
	}{{
		summary:  "comparison with a constant",
		pred:     sqlbuilder.Gt(price, 5),
		sql:      "items.price>:p0",
		bindings: map[string]any{"p0": 5},
	}, {
		summary:  "constant on the left",
		pred:     sqlbuilder.Le(10, price),
		sql:      ":p0<=items.price",
		bindings: map[string]any{"p0": 10},
	}, {
		summary:  "member by field name",
		pred:     sqlbuilder.Eq(sqlbuilder.Member[Person]("Fullname"), "Fred"),
		sql:      "person.name=:p0",
		bindings: map[string]any{"p0": "Fred"},
	}, {
		summary:  "equal to null",
		pred:     sqlbuilder.Eq(sqlbuilder.Member[Person]("email"), nil),
		sql:      "person.email IS NULL",
		bindings: map[string]any{},
	}, {
		summary:  "null on the left",
		pred:     sqlbuilder.Eq(nil, sqlbuilder.Member[Person]("email")),
		sql:      "person.email IS NULL",
		bindings: map[string]any{},
	}, {
		summary:  "not equal to null",
		pred:     sqlbuilder.Ne(sqlbuilder.Null(), sqlbuilder.Member[Person]("email")),
		sql:      "person.email IS NOT NULL",
		bindings: map[string]any{},
	}, {
		summary:  "two members",
		pred:     sqlbuilder.Eq(sqlbuilder.Member[Item]("store_id"), sqlbuilder.Member[Person]("address_id")),
		sql:      "items.store_id=person.address_id",
		bindings: map[string]any{},
	}, {
		summary: "and",
		pred: sqlbuilder.AndAlso(
			sqlbuilder.Eq(id, 1),
			sqlbuilder.Gt(price, 2.5),
			sqlbuilder.Ne(sqlbuilder.Member[Item]("store_id"), 1),
		),
		sql:      "(items.id=:p0 AND items.price>:p1) AND items.store_id!=:p0",
		bindings: map[string]any{"p0": 1, "p1": 2.5},
	}, {
		summary: "or of and",
		pred: sqlbuilder.OrElse(
			sqlbuilder.Eq(id, 1),
			sqlbuilder.AndAlso(sqlbuilder.Eq(id, 2), sqlbuilder.Lt(price, 3)),
		),
		sql:      "items.id=:p0 OR (items.id=:p1 AND items.price<:p2)",
		bindings: map[string]any{"p0": 1, "p1": 2, "p2": 3},
	}, {
		summary:  "not",
		pred:     sqlbuilder.Not(sqlbuilder.Eq(id, 1)),
		sql:      "NOT (items.id=:p0)",
		bindings: map[string]any{"p0": 1},
	}, {
		summary:  "contains",
		pred:     sqlbuilder.Contains([]int{34, 37}, id),
		sql:      "items.id IN (:p0,:p1)",
		bindings: map[string]any{"p0": 34, "p1": 37},
	}, {
		summary:  "contains combined",
		pred:     sqlbuilder.AndAlso(sqlbuilder.Contains([]int{34, 37}, id), sqlbuilder.Gt(price, 1)),
		sql:      "items.id IN (:p0,:p1) AND items.price>:p2",
		bindings: map[string]any{"p0": 34, "p1": 37, "p2": 1},
	}, {
		summary:  "arithmetic",
		pred:     sqlbuilder.Gt(sqlbuilder.Mul(price, 2), sqlbuilder.Add(id, 1)),
		sql:      "items.price*:p0>items.id+:p1",
		bindings: map[string]any{"p0": 2, "p1": 1},
	}, {
		summary:  "nested arithmetic",
		pred:     sqlbuilder.Lt(sqlbuilder.Mul(sqlbuilder.Sub(price, 1), 2), 10),
		sql:      "(items.price-:p0)*:p1<:p2",
		bindings: map[string]any{"p0": 1, "p1": 2, "p2": 10},
	}, {
		summary:  "expression constant",
		pred:     sqlbuilder.Gt(price, sqlbuilder.Text("items.cost")),
		sql:      "items.price>items.cost",
		bindings: map[string]any{},
	}, {
		summary: "subquery",
		pred: sqlbuilder.Eq(
			sqlbuilder.Member[Item]("store_id"),
			sqlbuilder.Subquery(sqlbuilder.NewQuery("stores").Select("id").Where(sqlbuilder.EqualTo("name", "Downtown"))),
		),
		sql:      "items.store_id=(SELECT id FROM stores WHERE name=:p0)",
		bindings: map[string]any{"p0": "Downtown"},
	}, {
		summary:  "underscore member",
		pred:     sqlbuilder.Eq(sqlbuilder.Member[Entity]("_id"), 3),
		sql:      "entities.id=:p0",
		bindings: map[string]any{"p0": 3},
	}, {
		summary:  "underscore member without underscore",
		pred:     sqlbuilder.Eq(sqlbuilder.Member[Entity]("id"), 3),
		sql:      "entities.id=:p0",
		bindings: map[string]any{"p0": 3},
	}, {
		summary:  "bare member",
		pred:     sqlbuilder.Member[Entity]("title"),
		sql:      "entities.title",
		bindings: map[string]any{},
	}}
	tr := newTranslator(c)
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		cond, err := tr.Translate(t.pred)
		c.Assert(err, IsNil)
		sql, bindings := render(c, cond)
		c.Check(sql, Equals, t.sql)
		c.Check(bindings, DeepEquals, t.bindings)
	}
}

func (s *TranslateSuite) TestTranslateErrors(c *C) {
	tests := []struct {
		summary string
		pred    sqlbuilder.Node
		err     string
		kind    error
	}{{
		summary: "nil predicate",
		pred:    nil,
		err:     "cannot translate nil predicate: invalid argument",
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "unregistered type",
		pred:    sqlbuilder.Eq(sqlbuilder.Member[Store]("id"), 1),
		err:     "table must have been added before: .*: invalid operation",
		kind:    sqlbuilder.ErrInvalidOperation,
	}, {
		summary: "unknown member",
		pred:    sqlbuilder.Eq(sqlbuilder.Member[Item]("colour"), "red"),
		err:     `type Item has no member "colour": invalid argument`,
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "excluded member",
		pred:    sqlbuilder.Eq(sqlbuilder.Member[Entity]("Hidden"), true),
		err:     `type Entity has no member "Hidden": invalid argument`,
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "contains over a member",
		pred:    sqlbuilder.Contains(sqlbuilder.Member[Item]("id"), 3),
		err:     "Contains over a column or a subquery: not implemented",
		kind:    sqlbuilder.ErrNotImplemented,
	}, {
		summary: "contains over a subquery",
		pred:    sqlbuilder.Contains(sqlbuilder.Subquery(sqlbuilder.NewQuery("t").Select("id")), 3),
		err:     "Contains over a column or a subquery: not implemented",
		kind:    sqlbuilder.ErrNotImplemented,
	}, {
		summary: "contains over an empty list",
		pred:    sqlbuilder.Contains([]int{}, sqlbuilder.Member[Item]("id")),
		err:     "cannot build parameter list from empty list: invalid argument",
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "arithmetic is not a predicate",
		pred:    sqlbuilder.Add(sqlbuilder.Member[Item]("price"), 1),
		err:     `"\+" is not a boolean operator: invalid argument`,
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "ordering against null",
		pred:    sqlbuilder.Lt(sqlbuilder.Member[Item]("price"), nil),
		err:     `cannot compare with NULL using "<": invalid argument`,
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "error in nested operand",
		pred:    sqlbuilder.AndAlso(sqlbuilder.Eq(sqlbuilder.Member[Item]("id"), 1), sqlbuilder.Not(sqlbuilder.Eq(sqlbuilder.Member[Store]("id"), 1))),
		err:     "table must have been added before: .*: invalid operation",
		kind:    sqlbuilder.ErrInvalidOperation,
	}}
	tr := newTranslator(c)
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		_, err := tr.Translate(t.pred)
		c.Check(err, ErrorMatches, t.err)
		c.Check(errors.Is(err, t.kind), Equals, true)
	}
}

func (s *TranslateSuite) TestRegisterNonStruct(c *C) {
	tr := sqlbuilder.NewTranslator(nil)
	err := tr.Register("numbers", 5)
	c.Assert(errors.Is(err, sqlbuilder.ErrInvalidArgument), Equals, true)
}
