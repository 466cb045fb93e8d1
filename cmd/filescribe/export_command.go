package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"filescribe/internal/export"
	"filescribe/internal/ipc"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var dir string
	var name string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Write a completed job's transcript to a file",
		Long: "Serialize a completed transcript. Formats: " + formatList() + ".\n" +
			"Without --format the configured export.default_format is used.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.ExportRequest{
				JobID:    args[0],
				Format:   format,
				FileName: strings.TrimSpace(name),
				Inline:   toStdout,
			}
			if strings.TrimSpace(format) != "" {
				parsed, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				req.Format = string(parsed)
			}
			if trimmed := strings.TrimSpace(dir); trimmed != "" && !strings.HasPrefix(trimmed, "~") {
				abs, err := filepath.Abs(trimmed)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", dir, err)
				}
				req.Dir = abs
			} else {
				req.Dir = trimmed
			}
			return ctx.withClient(func(client *ipc.Client) error {
				rpcCtx, cancel := rpcContext(cmd)
				defer cancel()
				resp, err := client.Export(rpcCtx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if toStdout {
					fmt.Fprint(out, resp.Content)
					return nil
				}
				fmt.Fprintf(out, "Exported %s transcript to %s\n", resp.Format, resp.Path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to write into (default export_dir)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "File name (default derived from the source file)")
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the serialized transcript instead of writing a file")
	cmd.MarkFlagsMutuallyExclusive("stdout", "dir")
	cmd.MarkFlagsMutuallyExclusive("stdout", "name")
	return cmd
}

func formatList() string {
	formats := export.Formats()
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}
