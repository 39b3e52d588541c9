package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashdetail/internal/resolver"
)

type queryFlags struct {
	refresh  bool
	debug    bool
	commit   string
	noLocal  bool
	noRemote bool
	url      string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "Ignore the cache and resolve again")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Log each resolution step")
	cmd.Flags().StringVar(&f.commit, "commit", "", "Commit policy: affirmative, always or never")
	cmd.Flags().BoolVar(&f.noLocal, "no-local", false, "Skip local decoding and local search")
	cmd.Flags().BoolVar(&f.noRemote, "no-remote", false, "Skip remote endpoints")
	cmd.Flags().StringVar(&f.url, "url", "", "Use this endpoint only, with no fallback")
}

func (f *queryFlags) options() (resolver.Options, error) {
	policy, err := resolver.ParseCommitPolicy(f.commit)
	if err != nil {
		return resolver.Options{}, err
	}
	return resolver.Options{
		Refresh:  f.refresh,
		Debug:    f.debug,
		Commit:   policy,
		NoLocal:  f.noLocal,
		NoRemote: f.noRemote,
		URL:      f.url,
	}, nil
}

type queryOutput struct {
	resolver.Result
	Via      resolver.Via `json:"via,omitempty"`
	Resolved string       `json:"resolved,omitempty"`
}

type queryFunc func(ctx context.Context, r *resolver.Resolver, arg string, opts resolver.Options) queryOutput

type resolveMethod func(*resolver.Resolver, context.Context, string, resolver.Options) resolver.Result

func single(fn resolveMethod) queryFunc {
	return func(c context.Context, r *resolver.Resolver, arg string, opts resolver.Options) queryOutput {
		return queryOutput{Result: fn(r, c, arg, opts)}
	}
}

func newQueryCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newQueryCommand(ctx, "pn <part-number>", "Resolve a flash part number", []string{"flash"},
			single((*resolver.Resolver).PartNumber)),
		newQueryCommand(ctx, "id <flash-id>", "Decode a flash ID", nil,
			single((*resolver.Resolver).ID)),
		newQueryCommand(ctx, "dram <part-number>", "Resolve a DRAM part number or Micron FBGA code", nil,
			single((*resolver.Resolver).DRAM)),
		newQueryCommand(ctx, "micron <fbga-code>", "Expand a Micron FBGA code", []string{"fbga"},
			single((*resolver.Resolver).Micron)),
		newQueryCommand(ctx, "lookup <part-number>", "Resolve a part number with search and Micron fallbacks", nil,
			func(c context.Context, r *resolver.Resolver, arg string, opts resolver.Options) queryOutput {
				res := r.Lookup(c, arg, opts)
				return queryOutput{Result: res.Result, Via: res.Via, Resolved: res.Resolved}
			}),
		newSearchCommand(ctx),
	}
}

func newQueryCommand(ctx *commandContext, use, short string, aliases []string, call queryFunc) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Aliases: aliases,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			r, _, err := ctx.newResolver(cmd.Context())
			if err != nil {
				return err
			}
			return present(cmd, ctx, call(cmd.Context(), r, args[0], opts), opts)
		},
	}
	flags.register(cmd)
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var flags queryFlags
	var count int
	var mode string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cached and remote part numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			searchMode, err := resolver.ParseSearchMode(mode)
			if err != nil {
				return err
			}
			r, _, err := ctx.newResolver(cmd.Context())
			if err != nil {
				return err
			}
			res := r.Search(cmd.Context(), args[0], count, searchMode, opts)
			return present(cmd, ctx, queryOutput{Result: res}, opts)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", resolver.DefaultSearchCount, "Maximum number of matches")
	cmd.Flags().StringVar(&mode, "mode", string(resolver.SearchBoth), "Search mode: local, remote or both")
	return cmd
}

// present commits a meaningful result, prints it and turns a negative result
// into a non-zero exit.
func present(cmd *cobra.Command, ctx *commandContext, out queryOutput, opts resolver.Options) error {
	if err := resolver.CommitMeaningful(cmd.Context(), &out.Result, opts.Commit); err != nil {
		ctx.logger().Warn("commit failed", zap.Error(err))
	}

	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if !out.OK {
		return errReported
	}
	return nil
}
