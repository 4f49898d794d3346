// Package version provides the version command.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/cognitedata/cdf-tk/internal/buildinfo"
)

// Command creates and returns the version command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cdf-tk %s (built %s, %s/%s)\n",
				buildinfo.Version, buildinfo.BuildDate, runtime.GOOS, runtime.GOARCH)
		},
	}
}
