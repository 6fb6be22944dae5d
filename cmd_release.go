package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/cliutil"
	"github.com/yougov/vr-common/pkg/vr"
)

var argparserRelease = &cobra.Command{
	Use:   "release {[flags]|SUBCOMMAND...}",
	Short: "Inspect and deploy releases",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

func init() {
	argparser.AddCommand(argparserRelease)
}

func init() {
	argparserRelease.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show one release's document",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			release, err := vr.ReleaseByID(ctx, apiClient(flags), id)
			if err != nil {
				return err
			}
			return printJSON(flags.OutOrStdout(), release.Doc)
		},
	})
}

func init() {
	var flagConfigName string
	cmd := &cobra.Command{
		Use:   "deploy [flags] ID HOST PORT PROC",
		Short: "Deploy a release as a proc on a host",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(4)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			port, err := strconv.Atoi(args[2])
			if err != nil {
				return err
			}
			release, err := vr.ReleaseByID(ctx, apiClient(flags), id)
			if err != nil {
				return err
			}
			return release.Deploy(ctx, args[1], port, args[3], flagConfigName)
		},
	}
	cmd.Flags().StringVar(&flagConfigName, "config-name", "local",
		"Config name to deploy under")
	argparserRelease.AddCommand(cmd)
}
