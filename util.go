package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/yougov/vr-common/pkg/vr"
)

func apiClient(cmd *cobra.Command) *vr.Client {
	base, _ := cmd.Flags().GetString("api-url")
	username, _ := cmd.Flags().GetString("username")
	return &vr.Client{
		Base:     base,
		Username: username,
	}
}

func printJSON(w io.Writer, doc interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
