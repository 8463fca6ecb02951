package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// Version is set at build time with -ldflags "-X main.Version=v1.2.3".
var Version = "v0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "ct", versionString(Version))
			return nil
		},
	}
}

// versionString returns the canonical form of v, or "dev" for builds
// without a valid semantic version.
func versionString(v string) string {
	if v != "" && v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "dev"
	}
	return semver.Canonical(v)
}
