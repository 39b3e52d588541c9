package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"flashdetail/internal/store"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and edit cached records",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List cache tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			tables, err := st.Tables(cmd.Context())
			if err != nil {
				return err
			}
			g := newGrid("Table", "Records").numeric(1)
			for _, t := range tables {
				keys, err := st.Keys(cmd.Context(), t)
				if err != nil {
					return err
				}
				g.add(t, strconv.Itoa(len(keys)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), g)
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "keys <table>",
		Short: "List the keys of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			keys, err := st.Keys(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "get <table> <key>",
		Short: "Show one cached record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			rec, ok, err := st.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s/%s: %w", args[0], store.NormalizeKey(args[1]), store.ErrNotFound)
			}

			fields := make([]string, 0, len(rec.Data))
			for f := range rec.Data {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			g := newGrid("Field", "Value").wrap(1, 72)
			for _, f := range fields {
				g.add(f, fmt.Sprint(rec.Data[f]))
			}
			fmt.Fprintln(cmd.OutOrStdout(), g)
			return nil
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "rm <table> <key>",
		Short: "Delete one cached record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			return st.Delete(cmd.Context(), args[0], args[1])
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear <table>",
		Short: "Remove every record of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			return st.ClearTable(cmd.Context(), args[0])
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "drop <table>",
		Short: "Delete a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			return st.DeleteTable(cmd.Context(), args[0])
		},
	})

	cacheCmd.AddCommand(newCacheEditCommand(ctx))
	return cacheCmd
}

func newCacheEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <table> <key> <add|replace|remove> <field> [value]",
		Short: "Add, replace or remove one field of a record",
		Long: "Edit a single field of a cached record. Values are parsed as JSON when\n" +
			"possible and kept as plain strings otherwise. Removing the last field\n" +
			"deletes the record.",
		Args: cobra.RangeArgs(4, 5),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := store.ParseFieldOp(args[2])
			if err != nil {
				return err
			}
			var value any
			if op != store.OpRemove {
				if len(args) < 5 {
					return fmt.Errorf("%s needs a value", op)
				}
				value = parseFieldValue(args[4])
			}

			st, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			deleted, err := store.EditField(cmd.Context(), st, args[0], args[1], op, args[3], value)
			if err != nil {
				return err
			}
			if deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s deleted (no fields left)\n", args[0], store.NormalizeKey(args[1]))
			}
			return nil
		},
	}
}

func parseFieldValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v
	}
	return raw
}
