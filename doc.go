/*
Package sqlbuilder composes SQL statements from reusable pieces and maps their
results back into Go structs.

Statements are built from fragments rather than strings. A Fragment holds
literal SQL text and parameters; fragments nest inside each other and every
parameter is only numbered when the outermost statement is rendered, so a
subquery or a condition can be built once and embedded anywhere:

	active := sqlbuilder.EqualTo("s.active", true)
	recent := sqlbuilder.GreaterThan("s.opened", since)

	q := sqlbuilder.NewQuery("stores s").
		Select("s.id, s.name").
		Where(active.And(recent)).
		OrderBy("s.name").
		Limit(20)

	sql, bindings, err := q.Render(sqlbuilder.PostgresDialect)

Equal comparable values share one parameter within a statement. The
placeholder style is chosen by a Dialect: ":p0" named parameters by default,
"$1" for PostgreSQL and "?" for MySQL.

# Conditions

Conditions are immutable. And and Or return a new Condition and combine left
to right, parenthesizing an operand that is itself a combination:

	a.And(b).Or(c) // (a AND b) OR c

# Typed queries

A RootQuery selects entities of one struct type. Columns come from the "db"
tags of the struct and predicates are written over struct members, then
translated to SQL:

	q := sqlbuilder.NewRootQuery[Item]("items")
	q.Join("stores", Store{}, "store_id", "id", sqlbuilder.InnerJoin)
	q.SelectAll().Where(sqlbuilder.AndAlso(
		sqlbuilder.Gt(sqlbuilder.Member[Item]("price"), 5),
		sqlbuilder.Eq(sqlbuilder.Member[Store]("name"), "Downtown"),
	))

Comparing a member with nil translates to IS NULL or IS NOT NULL.

# Running statements

A DB wraps a database/sql handle and caches a prepared statement per rendered
SQL text. Results are read with List, One and Scalar, or with a Fetcher that
rebuilds entities holding child collections from the rows of a join:

	stores, err := sqlbuilder.NewFetcher(func(s *Store) int { return s.ID }, nil).
		AddCollection("Items", map[string]string{"item_id": "id", "price": "price"}).
		List(db.Query(ctx, q))

Updater and MassUpdater write members of structs back to their tables.

Errors wrap ErrInvalidArgument, ErrInvalidOperation or ErrNotImplemented and
can be checked with errors.Is.
*/
package sqlbuilder
