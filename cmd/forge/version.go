package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "forge %s\n", version)
			fmt.Fprintf(a.stdout, "  commit: %s\n", commit)
			fmt.Fprintf(a.stdout, "  built:  %s\n", date)
			fmt.Fprintf(a.stdout, "  go:     %s\n", runtime.Version())
		},
	}
}
