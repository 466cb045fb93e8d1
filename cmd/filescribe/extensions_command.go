package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"filescribe/internal/ipc"
)

func newExtensionsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "extensions",
		Short: "List media file extensions the daemon accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				resp, err := client.Extensions(rpcCtx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Extensions)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(resp.Extensions, " "))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}
