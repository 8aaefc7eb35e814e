// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/canonical/sqlbuilder"
)

// Store is a shop with the items it sells.
type Store struct {
	ID    int64  `db:"id" json:"id" yaml:"id"`
	Name  string `db:"name" json:"name" yaml:"name"`
	Items []Item `json:"items" yaml:"items"`
}

// Item is an article sold by a store.
type Item struct {
	ID      int64   `db:"id" json:"id" yaml:"id"`
	StoreID int64   `db:"store_id" json:"store_id" yaml:"store_id"`
	SKU     string  `db:"sku" json:"sku" yaml:"sku"`
	Price   float64 `db:"price" json:"price" yaml:"price"`
	Note    *string `db:"note,omitempty" json:"note,omitempty" yaml:"note,omitempty"`
}

var schema = []string{
	"CREATE TABLE IF NOT EXISTS stores (id BIGINT PRIMARY KEY, name VARCHAR(255) NOT NULL)",
	"CREATE TABLE IF NOT EXISTS items (id BIGINT PRIMARY KEY, store_id BIGINT NOT NULL, sku VARCHAR(36) NOT NULL, price DOUBLE PRECISION NOT NULL, note TEXT)",
	"DELETE FROM items",
	"DELETE FROM stores",
}

// Item rows are interleaved across stores so that grouping matters when
// they are read back in id order.
var seedStores = []Store{
	{ID: 1, Name: "Downtown"},
	{ID: 2, Name: "Harbour"},
	{ID: 3, Name: "Airport"},
}

var seedItems = []struct {
	id, store int64
	price     float64
	note      string
}{
	{34, 1, 3.5, ""},
	{37, 1, 12, ""},
	{41, 2, 7.25, "seasonal"},
	{49, 1, 1.99, "clearance"},
}

// Open connects to the configured database.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*sqlbuilder.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s database", cfg.Driver)
	}
	if cfg.Driver == "sqlite3" {
		// Every connection to :memory: is a distinct database.
		sqldb.SetMaxOpenConns(1)
	}
	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, errors.Wrapf(err, "cannot connect to %s database", cfg.Driver)
	}
	return sqlbuilder.NewDB(sqldb,
		sqlbuilder.WithDialect(cfg.Dialect()),
		sqlbuilder.WithLogger(logger),
	), nil
}

// Seed (re)creates the demo tables and fills them.
func Seed(ctx context.Context, db *sqlbuilder.DB) error {
	tx, err := db.Begin(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "cannot begin transaction")
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.Exec(ctx, sqlbuilder.Text(stmt)); err != nil {
			return errors.Wrap(err, "cannot create schema")
		}
	}
	for _, s := range seedStores {
		insert := sqlbuilder.Text("INSERT INTO stores (id, name) VALUES (").
			AppendParameter(s.ID).AppendText(",").
			AppendParameter(s.Name).AppendText(")")
		if _, err := tx.Exec(ctx, insert); err != nil {
			return errors.Wrapf(err, "cannot insert store %d", s.ID)
		}
	}
	for _, it := range seedItems {
		insert := sqlbuilder.Text("INSERT INTO items (id, store_id, sku, price, note) VALUES (").
			AppendParameter(it.id).AppendText(",").
			AppendParameter(it.store).AppendText(",").
			AppendParameter(uuid.NewString()).AppendText(",").
			AppendParameter(it.price).AppendText(",")
		if it.note == "" {
			insert.AppendText("NULL)")
		} else {
			insert.AppendParameter(it.note).AppendText(")")
		}
		if _, err := tx.Exec(ctx, insert); err != nil {
			return errors.Wrapf(err, "cannot insert item %d", it.id)
		}
	}
	return tx.Commit()
}

// StoresQuery reads every store with its items as one flat join, in item
// order. Stores without items come last.
func StoresQuery() *sqlbuilder.QueryBuilder {
	return sqlbuilder.NewQuery("stores").
		Select("stores.id, stores.name, items.id AS item_id, items.store_id, items.sku, items.price, items.note").
		Join("items", "items.store_id", "stores.id", sqlbuilder.LeftOuterJoin).
		OrderByFragment(sqlbuilder.Text("items.id IS NULL"), false).
		OrderBy("items.id")
}

// StoresFetcher reassembles the rows of StoresQuery into stores.
func StoresFetcher(contiguous bool) *sqlbuilder.Fetcher[Store, int64] {
	f := sqlbuilder.NewFetcher(func(s *Store) int64 { return s.ID }, map[string]string{
		"id":   "id",
		"name": "name",
	}).AddCollection("Items", map[string]string{
		"item_id":  "id",
		"store_id": "store_id",
		"sku":      "sku",
		"price":    "price",
		"note":     "note",
	})
	if contiguous {
		f.GroupContiguous()
	}
	return f
}

// ItemsQuery reads the items of the named stores priced above minPrice, most
// expensive first. A negative limit means no limit.
func ItemsQuery(minPrice float64, stores []string, limit int) *sqlbuilder.RootQuery[Item] {
	q := sqlbuilder.NewRootQuery[Item]("items")
	q.Join("stores", Store{}, "store_id", "id", sqlbuilder.InnerJoin)
	q.SelectAll()
	pred := sqlbuilder.Gt(sqlbuilder.Member[Item]("price"), minPrice)
	if len(stores) > 0 {
		pred = sqlbuilder.AndAlso(pred, sqlbuilder.Contains(stores, sqlbuilder.Member[Store]("name")))
	}
	q.Where(pred).OrderByDesc("price")
	if limit >= 0 {
		q.Take(limit)
	}
	return q
}

// Reprice multiplies the price of every item by factor and returns the
// number of rows updated. PostgreSQL updates all items with one statement,
// other databases with one statement per item in a transaction.
func Reprice(ctx context.Context, db *sqlbuilder.DB, factor float64) (int64, error) {
	items, err := sqlbuilder.List[Item](db.Query(ctx, ItemsQuery(-1, nil, -1)))
	if err != nil {
		return 0, errors.Wrap(err, "cannot read items")
	}
	for i := range items {
		items[i].Price *= factor
	}

	if db.Dialect() == sqlbuilder.PostgresDialect {
		return sqlbuilder.NewMassUpdater[Item]("items", "id", "price").Add(items...).Exec(ctx, db)
	}

	tx, err := db.Begin(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "cannot begin transaction")
	}
	defer tx.Rollback()
	u := sqlbuilder.NewUpdater(nil)
	for i := range items {
		u.Update("items", &items[i], "id", "price")
	}
	n, err := u.Exec(ctx, tx)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
