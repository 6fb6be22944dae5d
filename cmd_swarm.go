package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/cliutil"
	"github.com/yougov/vr-common/pkg/vr"
)

var argparserSwarm = &cobra.Command{
	Use:   "swarm {[flags]|SUBCOMMAND...}",
	Short: "Inspect and dispatch swarms",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

func init() {
	argparser.AddCommand(argparserSwarm)
}

func init() {
	var flagExclude []string
	cmd := &cobra.Command{
		Use:   "list [flags] [PATTERN]",
		Short: "List swarm names, optionally filtered by a pattern",
		Args:  cliutil.WrapPositionalArgs(cobra.MaximumNArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			swarms, err := vr.Swarms(ctx, apiClient(flags), nil)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				filter, err := vr.NewFilter(args[0], flagExclude...)
				if err != nil {
					return err
				}
				swarms = filter.Swarms(swarms)
			}
			names := make([]string, len(swarms))
			for i, swarm := range swarms {
				names[i] = swarm.Name()
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintln(flags.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&flagExclude, "exclude", nil,
		"Skip swarms matching this pattern (repeatable)")
	argparserSwarm.AddCommand(cmd)
}

func init() {
	argparserSwarm.AddCommand(&cobra.Command{
		Use:   "show NAME_OR_ID",
		Short: "Show one swarm's document",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			c := apiClient(flags)

			var swarm *vr.Swarm
			var err error
			if id, convErr := strconv.Atoi(args[0]); convErr == nil {
				swarm, err = vr.SwarmByID(ctx, c, id)
			} else {
				swarm, err = vr.SwarmByName(ctx, c, args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(flags.OutOrStdout(), swarm.Doc)
		},
	})
}

func init() {
	var flagTag string
	var flagSet []string
	cmd := &cobra.Command{
		Use:   "dispatch [flags] NAME",
		Short: "Swarm out a swarm, optionally changing fields first",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			swarm, err := vr.SwarmByName(ctx, apiClient(flags), args[0])
			if err != nil {
				return err
			}

			changes := map[string]interface{}{}
			if flagTag != "" {
				changes["version"] = flagTag
			}
			for _, kv := range flagSet {
				key, val, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q: want KEY=VALUE", kv)
				}
				changes[key] = val
			}

			result, err := swarm.Dispatch(ctx, changes)
			if err != nil {
				return err
			}
			return printJSON(flags.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&flagTag, "tag", "", "Version tag to move the swarm to")
	cmd.Flags().StringArrayVar(&flagSet, "set", nil,
		"Set a swarm field before dispatching, as KEY=VALUE (repeatable)")
	argparserSwarm.AddCommand(cmd)
}
