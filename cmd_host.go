package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/cliutil"
	"github.com/yougov/vr-common/pkg/host"
)

var argparserHost = &cobra.Command{
	Use:   "host {[flags]|SUBCOMMAND...}",
	Short: "Inspect and control procs on supervisor-managed hosts",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,
}

var hostFlags struct {
	rpcPort  int
	username string
	password string
	redisURL string
	noCache  bool
}

func init() {
	argparserHost.PersistentFlags().IntVar(&hostFlags.rpcPort, "rpc-port",
		host.DefaultRPCPort, "Supervisor XML-RPC port")
	argparserHost.PersistentFlags().StringVar(&hostFlags.username, "supervisor-username", "",
		"Supervisor XML-RPC username")
	argparserHost.PersistentFlags().StringVar(&hostFlags.password, "supervisor-password", "",
		"Supervisor XML-RPC password")
	argparserHost.PersistentFlags().StringVar(&hostFlags.redisURL, "redis-url", "",
		"Redis URL for the proc cache (no caching when unset)")
	argparserHost.PersistentFlags().BoolVar(&hostFlags.noCache, "no-cache", false,
		"Ask the supervisor directly instead of the proc cache")
	argparser.AddCommand(argparserHost)
}

func newHost(name string) (*host.Host, error) {
	return host.New(host.Config{
		Name:               name,
		RPCPort:            hostFlags.rpcPort,
		SupervisorUsername: hostFlags.username,
		SupervisorPassword: hostFlags.password,
		RedisURL:           hostFlags.redisURL,
	})
}

func init() {
	argparserHost.AddCommand(&cobra.Command{
		Use:   "procs HOSTNAME",
		Short: "List the procs running on a host",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			h, err := newHost(args[0])
			if err != nil {
				return err
			}
			procs, err := h.GetProcs(ctx, !hostFlags.noCache)
			if err != nil {
				return err
			}
			for _, proc := range procs {
				fmt.Fprintf(flags.OutOrStdout(), "%s\t%s\n", proc.Name, proc.StateName)
			}
			return nil
		},
	})
}

func init() {
	for _, op := range []struct {
		use   string
		short string
		run   func(flags *cobra.Command, proc *host.Proc) error
	}{
		{"start HOSTNAME PROCNAME", "Start a proc", func(flags *cobra.Command, proc *host.Proc) error {
			return proc.StartProc(flags.Context())
		}},
		{"stop HOSTNAME PROCNAME", "Stop a proc", func(flags *cobra.Command, proc *host.Proc) error {
			return proc.StopProc(flags.Context())
		}},
		{"restart HOSTNAME PROCNAME", "Restart a proc", func(flags *cobra.Command, proc *host.Proc) error {
			return proc.Restart(flags.Context())
		}},
	} {
		op := op
		argparserHost.AddCommand(&cobra.Command{
			Use:   op.use,
			Short: op.short,
			Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(2)),
			RunE: func(flags *cobra.Command, args []string) error {
				ctx := flags.Context()
				h, err := newHost(args[0])
				if err != nil {
					return err
				}
				proc, err := h.GetProc(ctx, args[1], !hostFlags.noCache)
				if err != nil {
					return err
				}
				return op.run(flags, proc)
			},
		})
	}
}

func init() {
	argparserHost.AddCommand(&cobra.Command{
		Use:   "show HOSTNAME PROCNAME",
		Short: "Show one proc's state as JSON",
		Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(2)),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()
			h, err := newHost(args[0])
			if err != nil {
				return err
			}
			proc, err := h.GetProc(ctx, args[1], !hostFlags.noCache)
			if err != nil {
				return err
			}
			raw, err := proc.AsJSON()
			if err != nil {
				return err
			}
			_, err = flags.OutOrStdout().Write(append(raw, '\n'))
			return err
		},
	})
}
