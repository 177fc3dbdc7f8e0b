package commands

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/leapstack-labs/leapflow/internal/cli/config"
	"github.com/leapstack-labs/leapflow/internal/ui"
	"github.com/spf13/cobra"
)

// UIOptions holds options for the ui command.
type UIOptions struct {
	Port      int
	NoBrowser bool
	Watch     bool
}

// NewUICommand creates the ui command.
func NewUICommand() *cobra.Command {
	opts := &UIOptions{}

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Start the LeapFlow dashboard",
		Long: `Start a local web server with a dashboard over the pipeline.

The dashboard shows:
- Models in execution order with their inputs and cast policy
- Data-quality rules
- Run history, updated live when a run completes

It also exposes a JSON API under /api and a button to trigger a run.
With --watch, editing a CSV in the raw directory shows a notice.`,
		Example: `  # Start the dashboard on the default port
  leapflow ui

  # Start on a custom port without opening a browser
  leapflow ui --port 3000 --no-browser`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", ui.DefaultPort, "Port to serve on")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", true, "Watch the raw directory for changes")

	return cmd
}

func runUI(cmd *cobra.Command, opts *UIOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, cleanup, err := createEngine(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer cleanup()

	server := ui.NewServer(ui.Config{
		Pipeline: eng,
		Port:     opts.Port,
		Watch:    opts.Watch,
		RawDir:   cfg.RawDir,
		Logger:   logger,
	})

	url := fmt.Sprintf("http://localhost:%d", opts.Port)
	if !opts.NoBrowser {
		go openBrowser(url)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Starting UI server on %s\n", url)
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	return server.Serve(cmd.Context())
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	_ = cmd.Start()
}
