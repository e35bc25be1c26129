package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shineum/slurpgen/internal/compose"
)

func newShapesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shapes",
		Short: "List the message shapes in default send order",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			for _, shape := range compose.All() {
				repeat := "once"
				if shape.Repeats() {
					repeat = "per count"
				}
				fmt.Fprintf(out, "%-24s attachments=%d sent=%s\n", shape, shape.AttachmentCount(), repeat)
			}
		},
	}
}
