// Command vr talks to a Velociraptor deployment: swarms, builds,
// releases, the event stream, supervisor-managed hosts, and balancer
// pools.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/cliutil"
)

var argparser = &cobra.Command{
	Use:   "vr {[flags]|SUBCOMMAND...}",
	Short: "Deploy with Velociraptor",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)

	argparser.PersistentFlags().String("api-url", "",
		"Base URL of the deployment API (default $VELOCIRAPTOR_URL)")
	argparser.PersistentFlags().String("username", "",
		"Username to authenticate as (default the current OS user)")
}

func main() {
	ctx := context.Background()

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
