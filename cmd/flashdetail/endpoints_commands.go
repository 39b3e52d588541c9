package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"flashdetail/internal/remote"
)

func newEndpointsCommand(ctx *commandContext) *cobra.Command {
	endpointsCmd := &cobra.Command{
		Use:     "endpoints",
		Aliases: []string{"ep"},
		Short:   "Manage remote endpoint lists (families: decode, extra)",
	}

	endpointsCmd.AddCommand(&cobra.Command{
		Use:   "list [family]",
		Short: "Show endpoint lists in priority order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			families := remote.Families
			if len(args) == 1 {
				f, err := remote.ParseFamily(args[0])
				if err != nil {
					return err
				}
				families = []remote.Family{f}
			}
			eps := cfg.Endpoints()
			g := newGrid("Family", "#", "URL").numeric(1)
			for _, f := range families {
				for i, u := range eps.List(f) {
					g.add(string(f), strconv.Itoa(i), u)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), g)
			return nil
		},
	})

	endpointsCmd.AddCommand(&cobra.Command{
		Use:   "add <family> <url>",
		Short: "Append an endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.editEndpoints(cmd, args[0], func(eps *remote.Endpoints, f remote.Family) error {
				_, err := eps.Add(f, args[1])
				return err
			})
		},
	})

	endpointsCmd.AddCommand(&cobra.Command{
		Use:     "insert <family> <index> <url>",
		Short:   "Insert an endpoint at a position (negative counts from the end)",
		Example: "  flashdetail endpoints insert decode 0 https://decode.example\n  flashdetail endpoints insert decode -- -1 https://decode.example",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be an integer: %w", err)
			}
			return ctx.editEndpoints(cmd, args[0], func(eps *remote.Endpoints, f remote.Family) error {
				_, err := eps.Insert(f, index, args[2])
				return err
			})
		},
	})

	endpointsCmd.AddCommand(&cobra.Command{
		Use:   "rm <family> [url]",
		Short: "Remove an endpoint, or every endpoint of the family",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.editEndpoints(cmd, args[0], func(eps *remote.Endpoints, f remote.Family) error {
				if len(args) == 1 {
					eps.Clear(f)
					return nil
				}
				if !eps.Remove(f, args[1]) {
					return fmt.Errorf("%s is not configured for %s", remote.NormalizeBaseURL(args[1]), f)
				}
				return nil
			})
		},
	})

	endpointsCmd.AddCommand(newEndpointStatusCommand(ctx))
	return endpointsCmd
}

// editEndpoints applies fn to the configured lists of family and saves the
// config file.
func (c *commandContext) editEndpoints(cmd *cobra.Command, family string, fn func(*remote.Endpoints, remote.Family) error) error {
	f, err := remote.ParseFamily(family)
	if err != nil {
		return err
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	eps := cfg.Endpoints()
	if err := fn(eps, f); err != nil {
		return err
	}
	if err := c.saveEndpoints(eps); err != nil {
		return err
	}
	for i, u := range eps.List(f) {
		fmt.Fprintf(cmd.OutOrStdout(), "%d  %s\n", i, u)
	}
	return nil
}

func newEndpointStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [family]",
		Short: "Probe every configured endpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.remoteClient()
			if err != nil {
				return err
			}
			families := remote.Families
			if len(args) == 1 {
				f, err := remote.ParseFamily(args[0])
				if err != nil {
					return err
				}
				families = []remote.Family{f}
			}

			g := newGrid("Family", "URL", "Reachable", "Latency", "Error").numeric(3).wrap(4, 48)
			for _, f := range families {
				for _, row := range checkAll(cmd.Context(), client, f) {
					g.add(row...)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), g)
			return nil
		},
	}
}

func checkAll(ctx context.Context, client *remote.Client, f remote.Family) [][]string {
	urls := client.Endpoints().List(f)
	rows := make([][]string, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			start := time.Now()
			err := client.Probe(ctx, u)
			latency := time.Since(start).Round(time.Millisecond).String()
			row := []string{string(f), u, yesNo(err == nil), latency, ""}
			if err != nil {
				row[4] = err.Error()
			}
			rows[i] = row
		}(i, u)
	}
	wg.Wait()
	return rows
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
