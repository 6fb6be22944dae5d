package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/cliutil"
	"github.com/yougov/vr-common/pkg/vr"
)

func init() {
	var flagHost string
	var flagExclude []string
	cmd := &cobra.Command{
		Use:   "events [flags]",
		Short: "Tail the deployment's event stream as JSON lines",
		Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		RunE: func(flags *cobra.Command, args []string) error {
			ctx := flags.Context()

			var filter *vr.Filter
			if flagHost != "" {
				var err error
				filter, err = vr.NewFilter(flagHost, flagExclude...)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(flags.OutOrStdout())
			return apiClient(flags).Events(ctx, func(ev vr.Event) {
				if filter != nil {
					host, _ := ev.Data["host"].(string)
					if !filter.Match(host) {
						return
					}
				}
				if err := enc.Encode(ev.Data); err != nil {
					fmt.Fprintf(flags.ErrOrStderr(), "encoding event: %v\n", err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&flagHost, "host", "",
		"Only print events whose host matches this pattern")
	cmd.Flags().StringArrayVar(&flagExclude, "exclude", nil,
		"Skip events whose host matches this pattern (repeatable)")
	argparser.AddCommand(cmd)
}
