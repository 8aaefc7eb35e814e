package sqlbuilder_test

import (
	"context"
	"errors"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlbuilder"
)

type UpdateSuite struct{}

var _ = Suite(&UpdateSuite{})

type notedItem struct {
	ID    int     `db:"id"`
	Note  *string `db:"note,omitempty"`
	Price float64 `db:"price"`
}

type idOnly struct {
	ID int `db:"id"`
}

func (s *UpdateSuite) TestUpdaterRender(c *C) {
	tests := []struct {
		summary  string
		updater  *sqlbuilder.Updater
		sql      string
		bindings map[string]any
	}{{
		summary: "shared numbering",
		updater: sqlbuilder.NewUpdater(nil).
			Update("items", Item{ID: 34, StoreID: 1, Price: 4}, "id", "price").
			Update("items", &Item{ID: 37, Price: 4}, "id", "price"),
		sql:      "UPDATE items SET price=:p0 WHERE id=:p1;UPDATE items SET price=:p0 WHERE id=:p2;",
		bindings: map[string]any{"p0": 4.0, "p1": 34, "p2": 37},
	}, {
		summary:  "every member but the id",
		updater:  sqlbuilder.NewUpdater(nil).Update("items", Item{ID: 34, StoreID: 2, Price: 5}, "id"),
		sql:      "UPDATE items SET store_id=:p0,price=:p1 WHERE id=:p2;",
		bindings: map[string]any{"p0": 2, "p1": 5.0, "p2": 34},
	}, {
		summary:  "members by field name",
		updater:  sqlbuilder.NewUpdater(nil).Update("items", Item{ID: 34, StoreID: 2}, "ID", "StoreID"),
		sql:      "UPDATE items SET store_id=:p0 WHERE id=:p1;",
		bindings: map[string]any{"p0": 2, "p1": 34},
	}, {
		summary:  "empty members are omitted",
		updater:  sqlbuilder.NewUpdater(nil).Update("items", notedItem{ID: 34, Price: 5}, "id"),
		sql:      "UPDATE items SET price=:p0 WHERE id=:p1;",
		bindings: map[string]any{"p0": 5.0, "p1": 34},
	}, {
		summary:  "set members are written",
		updater:  sqlbuilder.NewUpdater(nil).Update("items", notedItem{ID: 34, Note: stringPtr("sale")}, "id"),
		sql:      "UPDATE items SET note=:p0,price=:p1 WHERE id=:p2;",
		bindings: map[string]any{"p0": stringPtr("sale"), "p1": 0.0, "p2": 34},
	}, {
		summary:  "named empty members are set to NULL",
		updater:  sqlbuilder.NewUpdater(nil).Update("items", notedItem{ID: 34}, "id", "note"),
		sql:      "UPDATE items SET note=NULL WHERE id=:p0;",
		bindings: map[string]any{"p0": 34},
	}, {
		summary:  "underscore id",
		updater:  sqlbuilder.NewUpdater(sqlbuilder.NewTypeCache()).Update("entities", Entity{ID: 3, Title: "x"}, "id"),
		sql:      "UPDATE entities SET title=:p0 WHERE id=:p1;",
		bindings: map[string]any{"p0": "x", "p1": 3},
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		c.Assert(t.updater.Err(), IsNil)
		sql, bindings := render(c, t.updater)
		c.Check(sql, Equals, t.sql)
		c.Check(bindings, DeepEquals, t.bindings)
	}
}

func (s *UpdateSuite) TestUpdaterUnnumbered(c *C) {
	u := sqlbuilder.NewUpdater(nil).
		Update("items", Item{ID: 34, Price: 4}, "id", "price").
		Update("items", Item{ID: 37, Price: 4}, "id", "price")
	c.Assert(u.Len(), Equals, 2)
	sql, bindings, err := u.Render(sqlbuilder.MySQLDialect)
	c.Assert(err, IsNil)
	c.Assert(sql, Equals, "UPDATE items SET price=? WHERE id=?;UPDATE items SET price=? WHERE id=?;")
	c.Assert(bindings.Args(sqlbuilder.MySQLDialect), DeepEquals, []any{4.0, 34, 4.0, 37})
}

func (s *UpdateSuite) TestUpdaterErrors(c *C) {
	tests := []struct {
		summary string
		updater *sqlbuilder.Updater
		err     string
	}{{
		summary: "nil object",
		updater: sqlbuilder.NewUpdater(nil).Update("items", nil, "id"),
		err:     "cannot reflect nil value: invalid argument",
	}, {
		summary: "nil pointer",
		updater: sqlbuilder.NewUpdater(nil).Update("items", (*Item)(nil), "id"),
		err:     "cannot update items from nil object: invalid argument",
	}, {
		summary: "unknown id",
		updater: sqlbuilder.NewUpdater(nil).Update("items", Item{}, "uuid"),
		err:     `type Item has no member "uuid": invalid argument`,
	}, {
		summary: "unknown member",
		updater: sqlbuilder.NewUpdater(nil).Update("items", Item{}, "id", "colour"),
		err:     `type Item has no member "colour": invalid argument`,
	}, {
		summary: "nothing to update",
		updater: sqlbuilder.NewUpdater(nil).Update("things", idOnly{ID: 1}, "id"),
		err:     "no members to update in things: invalid argument",
	}, {
		summary: "first error is kept",
		updater: sqlbuilder.NewUpdater(nil).
			Update("items", Item{ID: 1}, "id", "colour").
			Update("items", Item{ID: 2}, "id", "price"),
		err: `type Item has no member "colour": invalid argument`,
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		c.Check(t.updater.Err(), ErrorMatches, t.err)
		c.Check(errors.Is(t.updater.Err(), sqlbuilder.ErrInvalidArgument), Equals, true)
		c.Check(t.updater.Len(), Equals, 0)
		_, _, err := t.updater.Render(sqlbuilder.DefaultDialect)
		c.Check(err, Equals, t.updater.Err())
		_, err = t.updater.Exec(context.Background(), nil)
		c.Check(err, Equals, t.updater.Err())
	}
}

func (s *UpdateSuite) TestUpdaterExec(c *C) {
	db := storesDB(c)
	ctx := context.Background()
	countAt := func(price float64) int64 {
		n, err := sqlbuilder.Scalar[int64](db.Query(ctx, sqlbuilder.NewQuery("items").Select("COUNT(*)").Where(sqlbuilder.EqualTo("price", price))))
		c.Assert(err, IsNil)
		return n
	}

	u := sqlbuilder.NewUpdater(nil).
		Update("items", Item{ID: 34, StoreID: 1, Price: 9}, "id", "price").
		Update("items", Item{ID: 47, StoreID: 3, Price: 9}, "id", "price").
		Update("items", Item{ID: 99, Price: 9}, "id", "price")

	tx, err := db.Begin(ctx, nil)
	c.Assert(err, IsNil)
	n, err := u.Exec(ctx, tx)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, int64(2))
	c.Assert(tx.Rollback(), IsNil)
	c.Assert(countAt(9), Equals, int64(0))

	n, err = u.Exec(ctx, db)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, int64(2))
	c.Assert(countAt(9), Equals, int64(2))

	_, err = u.Exec(ctx, tx)
	c.Assert(errors.Is(err, sqlbuilder.ErrTXDone), Equals, true)
}

func (s *UpdateSuite) TestMassUpdaterRender(c *C) {
	u := sqlbuilder.NewMassUpdater[Item]("items", "id", "price", "StoreID").
		Add(Item{ID: 34, StoreID: 1, Price: 2}).
		Add(Item{ID: 37, StoreID: 1, Price: 3})
	c.Assert(u.Err(), IsNil)
	c.Assert(u.Len(), Equals, 2)

	sql, bindings := render(c, u)
	c.Assert(sql, Equals, "UPDATE items SET price=v.price,store_id=v.store_id "+
		"FROM (VALUES (:p0,:p1,:p2),(:p3,:p1,:p4)) AS v(price,store_id,id) "+
		"WHERE items.id=v.id")
	c.Assert(bindings, DeepEquals, map[string]any{"p0": 2.0, "p1": 1, "p2": 34, "p3": 3.0, "p4": 37})

	sql, _, err := u.Render(sqlbuilder.PostgresDialect)
	c.Assert(err, IsNil)
	c.Assert(sql, Equals, "UPDATE items SET price=v.price,store_id=v.store_id "+
		"FROM (VALUES ($1,$2,$3),($4,$2,$5)) AS v(price,store_id,id) "+
		"WHERE items.id=v.id")
}

func (s *UpdateSuite) TestMassUpdaterNulls(c *C) {
	u := sqlbuilder.NewMassUpdaterWith[notedItem](sqlbuilder.NewTypeCache(), "items", "id", "note").
		Add(notedItem{ID: 1}, notedItem{ID: 2, Note: stringPtr("sale")})
	sql, _ := render(c, u)
	c.Assert(sql, Equals, "UPDATE items SET note=v.note FROM (VALUES (NULL,:p0),(:p1,:p2)) AS v(note,id) WHERE items.id=v.id")
}

func (s *UpdateSuite) TestMassUpdaterErrors(c *C) {
	tests := []struct {
		summary string
		err     error
		msg     string
		kind    error
	}{{
		summary: "not a struct",
		err:     sqlbuilder.NewMassUpdater[int]("items", "id", "price").Err(),
		msg:     "can only reflect struct type, got int: invalid argument",
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "unknown id",
		err:     sqlbuilder.NewMassUpdater[Item]("items", "uuid", "price").Err(),
		msg:     `type Item has no member "uuid": invalid argument`,
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "no members",
		err:     sqlbuilder.NewMassUpdater[Item]("items", "id").Err(),
		msg:     "no members to update in items: invalid argument",
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "unknown member",
		err:     sqlbuilder.NewMassUpdater[Item]("items", "id", "colour").Err(),
		msg:     `type Item has no member "colour": invalid argument`,
		kind:    sqlbuilder.ErrInvalidArgument,
	}, {
		summary: "no objects",
		err:     sqlbuilder.NewMassUpdater[Item]("items", "id", "price").Fragment().Err(),
		msg:     "no objects to update in items: invalid operation",
		kind:    sqlbuilder.ErrInvalidOperation,
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		c.Check(t.err, ErrorMatches, t.msg)
		c.Check(errors.Is(t.err, t.kind), Equals, true)
	}
}

func (s *UpdateSuite) TestMassUpdaterExecNothing(c *C) {
	n, err := sqlbuilder.NewMassUpdater[Item]("items", "id", "price").Exec(context.Background(), storesDB(c))
	c.Assert(err, IsNil)
	c.Assert(n, Equals, int64(0))
}
