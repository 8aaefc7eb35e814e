// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/canonical/sqlbuilder"
)

// NewStoresCommand creates the stores command, which reads every store with
// its items from a single join.
func NewStoresCommand(opts *RootOptions) *cobra.Command {
	var contiguous bool
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List the stores with their items",
		Long: `List the stores with their items, reassembled from the rows of one
LEFT OUTER JOIN ordered by item.

With --contiguous a store is started again each time its rows are
interrupted by another store, so stores may be listed more than once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.openSeeded(ctx)
			if err != nil {
				return err
			}
			stores, err := StoresFetcher(contiguous).List(db.Query(ctx, StoresQuery()))
			if err != nil {
				return err
			}
			return writeStores(cmd.OutOrStdout(), opts.Config.Format, stores)
		},
	}
	cmd.Flags().BoolVar(&contiguous, "contiguous", false, "only group adjacent rows of a store")
	return cmd
}

// NewItemsCommand creates the items command.
func NewItemsCommand(opts *RootOptions) *cobra.Command {
	var (
		minPrice float64
		stores   []string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List items above a price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.openSeeded(ctx)
			if err != nil {
				return err
			}
			items, err := sqlbuilder.List[Item](db.Query(ctx, ItemsQuery(minPrice, stores, limit)))
			if err != nil {
				return err
			}
			return writeItems(cmd.OutOrStdout(), opts.Config.Format, items)
		},
	}
	cmd.Flags().Float64Var(&minPrice, "min-price", 0, "only list items priced above this")
	cmd.Flags().StringSliceVar(&stores, "store", nil, "only list items of the named stores")
	cmd.Flags().IntVar(&limit, "limit", -1, "list at most this many items")
	return cmd
}

// NewRepriceCommand creates the reprice command.
func NewRepriceCommand(opts *RootOptions) *cobra.Command {
	var factor float64
	cmd := &cobra.Command{
		Use:   "reprice",
		Short: "Multiply the price of every item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.openSeeded(ctx)
			if err != nil {
				return err
			}
			n, err := Reprice(ctx, db, factor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d items repriced\n", n)
			items, err := sqlbuilder.List[Item](db.Query(ctx, ItemsQuery(-1, nil, -1)))
			if err != nil {
				return err
			}
			return writeItems(cmd.OutOrStdout(), opts.Config.Format, items)
		},
	}
	cmd.Flags().Float64Var(&factor, "factor", 1.1, "price multiplier")
	return cmd
}

// NewSQLCommand creates the sql command, which prints the statements of the
// other commands in the configured dialect without connecting.
func NewSQLCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sql",
		Short: "Print the statements run by the other commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := opts.Config.Dialect()
			for _, stmt := range []struct {
				name string
				expr sqlbuilder.Expr
			}{
				{"stores", StoresQuery()},
				{"items", ItemsQuery(5, []string{"Downtown", "Harbour"}, 10)},
			} {
				sql, bindings, err := stmt.expr.Fragment().Render(d)
				if err != nil {
					return err
				}
				header.Fprintf(cmd.OutOrStdout(), "-- %s\n", stmt.name)
				fmt.Fprintln(cmd.OutOrStdout(), sql)
				for _, b := range bindings {
					fmt.Fprintf(cmd.OutOrStdout(), "--   %s = %v\n", b.Name, b.Value)
				}
			}
			return nil
		},
	}
}
