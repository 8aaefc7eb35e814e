// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package example runs a ranked full text search over the items of a
// PostgreSQL store database.
package example

import (
	"context"

	"github.com/canonical/sqlbuilder"
	"github.com/canonical/sqlbuilder/postgres"
)

// Match is an item found by Search.
type Match struct {
	ID    int64   `db:"id"`
	SKU   string  `db:"sku"`
	Price float64 `db:"price"`
	Rank  float64 `db:"rank"`
}

// Item is a row of the items table.
type Item struct {
	ID      int64   `db:"id"`
	StoreID int64   `db:"store_id"`
	SKU     string  `db:"sku"`
	Price   float64 `db:"price"`
	Note    *string `db:"note"`
}

// Label weights for the D, C, B and A labels. Notes are labelled A.
var weights = [4]float64{0.1, 0.2, 0.4, 1}

// SearchQuery returns the items whose note matches the plain text terms,
// best matches first. A non empty stores restricts the search to those
// stores.
func SearchQuery(terms string, stores []int64, limit int) *sqlbuilder.QueryBuilder {
	vector := postgres.TsVector("english", "items.note", "A", true)
	query := postgres.TsQuery("english", terms, true)

	q := sqlbuilder.NewQuery("items").
		SelectColumnsOf(Item{}, "items", "id", "sku", "price").
		SelectProjection(postgres.TsRankWeighted(weights, vector, query, postgres.OnePlusLogLength).As("rank")).
		Where(postgres.Match(vector, query))
	if len(stores) > 0 {
		q.Where(postgres.Any("items.store_id", stores))
	}
	return q.OrderByDesc("rank").Limit(limit)
}

// Search runs SearchQuery on db, which must use the PostgreSQL dialect.
func Search(ctx context.Context, db *sqlbuilder.DB, terms string, stores []int64, limit int) ([]Match, error) {
	return sqlbuilder.List[Match](db.Query(ctx, SearchQuery(terms, stores, limit)))
}
