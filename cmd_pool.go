package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/balancer"
	"github.com/yougov/vr-common/pkg/cliutil"

	// Balancer backends register themselves.
	_ "github.com/yougov/vr-common/pkg/balancer/chained"
	_ "github.com/yougov/vr-common/pkg/balancer/stingray"
	_ "github.com/yougov/vr-common/pkg/balancer/varnish"
)

var argparserPool = &cobra.Command{
	Use:   "pool {[flags]|SUBCOMMAND...}",
	Short: "Manage balancer pool membership",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

var poolFlags struct {
	configFile string
	balancer   string
}

func init() {
	argparserPool.PersistentFlags().StringVar(&poolFlags.configFile, "config",
		"/etc/vr/balancers.yaml", "Balancer config file")
	argparserPool.PersistentFlags().StringVar(&poolFlags.balancer, "balancer",
		"default", "Which balancer in the config file to use")
	argparser.AddCommand(argparserPool)
}

func poolBalancer() (balancer.Balancer, error) {
	return balancer.LoadConfigFile(poolFlags.configFile, poolFlags.balancer)
}

func init() {
	argparserPool.AddCommand(&cobra.Command{
		Use:   "get POOL",
		Short: "List the nodes in a pool",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			b, err := poolBalancer()
			if err != nil {
				return err
			}
			nodes, err := b.GetNodes(flags.Context(), args[0])
			if err != nil {
				return err
			}
			sort.Strings(nodes)
			for _, node := range nodes {
				fmt.Fprintln(flags.OutOrStdout(), node)
			}
			return nil
		},
	})

	argparserPool.AddCommand(&cobra.Command{
		Use:   "add POOL NODES...",
		Short: "Add nodes to a pool",
		Args:  cliutil.WrapPositionalArgs(cobra.MinimumNArgs(2)),
		RunE: func(flags *cobra.Command, args []string) error {
			b, err := poolBalancer()
			if err != nil {
				return err
			}
			return b.AddNodes(flags.Context(), args[0], args[1:])
		},
	})

	argparserPool.AddCommand(&cobra.Command{
		Use:   "delete POOL [NODES...]",
		Short: "Remove nodes from a pool, or the whole pool",
		Args:  cliutil.WrapPositionalArgs(cobra.MinimumNArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			b, err := poolBalancer()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return b.DeletePool(flags.Context(), args[0])
			}
			return b.DeleteNodes(flags.Context(), args[0], args[1:])
		},
	})
}
