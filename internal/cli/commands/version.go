package commands

import (
	"fmt"
	"runtime"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/spf13/cobra"
)

// BuildInfo identifies a leapflow binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display LeapFlow version and build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if jsonOutput {
				return output.NewRenderer(out, cmd.ErrOrStderr(), output.ModeJSON).JSON(info)
			}
			_, _ = fmt.Fprintf(out, "LeapFlow v%s\n", info.Version)
			_, _ = fmt.Fprintln(out, "Layered listings pipeline built with Go")
			_, _ = fmt.Fprintf(out, "commit %s, built %s, %s/%s\n", info.Commit, info.BuildDate, runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output build information as JSON")
	return cmd
}
