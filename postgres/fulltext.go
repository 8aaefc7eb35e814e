// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package postgres provides fragments for PostgreSQL specific SQL: full text
// search and array parameters.
package postgres

import (
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/canonical/sqlbuilder"
)

// Normalization selects how TS_RANK takes the document length into account.
// Values may be combined with |.
type Normalization int

const (
	IgnoreDocumentLength  Normalization = 0
	OnePlusLogLength      Normalization = 1
	Length                Normalization = 2
	MeanHarmonicDistance  Normalization = 4
	UniqueWords           Normalization = 8
	OnePlusLogUniqueWords Normalization = 16
	RankOnePlus           Normalization = 32
)

const knownNormalizations = OnePlusLogLength | Length | MeanHarmonicDistance |
	UniqueWords | OnePlusLogUniqueWords | RankOnePlus

// TsVector returns TO_TSVECTOR(config, textOrColumn), wrapped in
// SETWEIGHT(…, weight) when weight is not empty. textOrColumn is a column
// name when isColumn is set, otherwise a parameter. weight must be one of
// "A", "B", "C", "D" or empty.
func TsVector(config, textOrColumn, weight string, isColumn bool) *sqlbuilder.Projection {
	switch weight {
	case "", "A", "B", "C", "D":
	default:
		return sqlbuilder.Project(sqlbuilder.Failed(errors.Wrapf(sqlbuilder.ErrInvalidArgument,
			"weight must be \"A\", \"B\", \"C\", \"D\" or empty, got %q", weight)))
	}
	f := sqlbuilder.Text("TO_TSVECTOR(").AppendParameter(config).AppendText(",")
	if isColumn {
		f.AppendText(textOrColumn)
	} else {
		f.AppendParameter(textOrColumn)
	}
	f.AppendText(")")
	if weight != "" {
		f.PrependText("SETWEIGHT(").AppendText(",").AppendParameter(weight).AppendText(")")
	}
	return sqlbuilder.Project(f)
}

// TsQuery returns PLAINTO_TSQUERY(config, query) when normalize is set, so
// the words of a plain search string are ANDed, or TO_TSQUERY(config, query)
// for a query that is already well formed.
func TsQuery(config, query string, normalize bool) *sqlbuilder.Fragment {
	fn := "TO_TSQUERY("
	if normalize {
		fn = "PLAINTO_TSQUERY("
	}
	return sqlbuilder.Text(fn).
		AppendParameter(config).
		AppendText(",").
		AppendParameter(query).
		AppendText(")")
}

// TsRank returns the projection TS_RANK(vector, query[, normalization]).
func TsRank(vector, query sqlbuilder.Expr, normalization ...Normalization) *sqlbuilder.Projection {
	return tsRank(nil, vector, query, normalization)
}

// TsRankWeighted is TsRank with the weights of the D, C, B and A labels, in
// that order, passed as a float4[] parameter.
func TsRankWeighted(weights [4]float64, vector, query sqlbuilder.Expr, normalization ...Normalization) *sqlbuilder.Projection {
	return tsRank(weights[:], vector, query, normalization)
}

func tsRank(weights []float64, vector, query sqlbuilder.Expr, normalization []Normalization) *sqlbuilder.Projection {
	var n Normalization
	for _, flag := range normalization {
		if flag < 0 || flag&^knownNormalizations != 0 {
			return sqlbuilder.Project(sqlbuilder.Failed(errors.Wrapf(sqlbuilder.ErrInvalidArgument,
				"unknown normalization %d", flag)))
		}
		n |= flag
	}
	f := sqlbuilder.Text("TS_RANK(")
	if weights != nil {
		f.AppendParameter(pq.Array(weights)).AppendText(",")
	}
	f.AppendFragment(vector).AppendText(",").AppendFragment(query)
	if len(normalization) > 0 {
		f.AppendText(",").AppendParameter(int(n))
	}
	f.AppendText(")")
	return sqlbuilder.Project(f)
}

// Match returns the condition vector @@ query.
func Match(vector, query sqlbuilder.Expr) *sqlbuilder.Condition {
	return sqlbuilder.Compare(vector, "@@", query)
}

// MatchText is Match against TsQuery(config, query, normalize).
func MatchText(vector sqlbuilder.Expr, config, query string, normalize bool) *sqlbuilder.Condition {
	return Match(vector, TsQuery(config, query, normalize))
}
