package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/cliutil"
	"github.com/yougov/vr-common/pkg/repo"
)

var argparserRepo = &cobra.Command{
	Use:   "repo {[flags]|SUBCOMMAND...}",
	Short: "Clone and update app repositories",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

func init() {
	argparser.AddCommand(argparserRepo)
}

func init() {
	var flagVCS string
	cmd := &cobra.Command{
		Use:   "clone [flags] URL [FOLDER]",
		Short: "Clone a repository, guessing the VCS type if needed",
		Args:  cliutil.WrapPositionalArgs(cobra.RangeArgs(1, 2)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			folder := ""
			if len(args) > 1 {
				folder = args[1]
			} else {
				folder = repo.Basename(args[0])
			}
			r, err := repo.New(ctx, folder, args[0], flagVCS)
			if err != nil {
				return err
			}
			return r.Clone(ctx)
		},
	}
	cmd.Flags().StringVar(&flagVCS, "vcs", "", `VCS type ("git" or "hg"; guessed when unset)`)
	argparserRepo.AddCommand(cmd)
}

func init() {
	argparserRepo.AddCommand(&cobra.Command{
		Use:   "update FOLDER [REV]",
		Short: "Update a checkout to a revision, cloning first if needed",
		Args:  cliutil.WrapPositionalArgs(cobra.RangeArgs(1, 2)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			r, err := repo.New(ctx, args[0], "", "")
			if err != nil {
				return err
			}
			rev := ""
			if len(args) > 1 {
				rev = args[1]
			}
			return r.Update(ctx, rev)
		},
	})

	argparserRepo.AddCommand(&cobra.Command{
		Use:   "version FOLDER",
		Short: "Print the current revision of a checkout",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			r, err := repo.New(ctx, args[0], "", "")
			if err != nil {
				return err
			}
			version, err := r.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(flags.OutOrStdout(), version)
			return nil
		},
	})
}
