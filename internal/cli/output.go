// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var header = color.New(color.Bold)

// writeValue writes v as JSON or YAML. It returns false for the text format,
// which each command renders itself.
func writeValue(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writeStores(w io.Writer, format string, stores []Store) error {
	if ok, err := writeValue(w, format, stores); ok {
		return err
	}
	for _, s := range stores {
		header.Fprintf(w, "%d %s (%d items)\n", s.ID, s.Name, len(s.Items))
		if err := writeItemTable(w, s.Items, "  "); err != nil {
			return err
		}
	}
	return nil
}

func writeItems(w io.Writer, format string, items []Item) error {
	if ok, err := writeValue(w, format, items); ok {
		return err
	}
	header.Fprintln(w, "ID\tSTORE\tPRICE\tNOTE")
	return writeItemTable(w, items, "")
}

func writeItemTable(w io.Writer, items []Item, indent string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		note := "-"
		if it.Note != nil {
			note = *it.Note
		}
		fmt.Fprintf(tw, "%s%d\t%d\t%.2f\t%s\n", indent, it.ID, it.StoreID, it.Price, note)
	}
	return tw.Flush()
}
