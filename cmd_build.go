package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/cliutil"
	"github.com/yougov/vr-common/pkg/vr"
)

func init() {
	var flagApp, flagTag string
	cmd := &cobra.Command{
		Use:   "build {[flags]|SWARMNAME}",
		Short: "Assemble a build, for a swarm or for an explicit app and tag",
		Args:  cliutil.WrapPositionalArgs(cobra.MaximumNArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			c := apiClient(flags)

			var build *vr.Build
			switch {
			case len(args) == 1:
				swarm, err := vr.SwarmByName(ctx, c, args[0])
				if err != nil {
					return err
				}
				build = swarm.NewBuild()
			case flagApp != "" && flagTag != "":
				build = vr.NewBuild(c, map[string]interface{}{
					"app": flagApp,
					"tag": flagTag,
				})
			default:
				return fmt.Errorf("need either a swarm name or both --app and --tag")
			}

			if err := build.Assemble(ctx); err != nil {
				return err
			}
			fmt.Fprintln(flags.OutOrStdout(), build.URI())
			return nil
		},
	}
	cmd.Flags().StringVar(&flagApp, "app", "", "App resource URI to build")
	cmd.Flags().StringVar(&flagTag, "tag", "", "Tag to build")
	argparser.AddCommand(cmd)
}
