package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/spf13/cobra"
)

const configFileName = "leapflow.yaml"

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new LeapFlow project",
		Long: `Initialize a new LeapFlow project with a configuration file and a raw data
directory.

This creates:
  - leapflow.yaml configuration file
  - raw/ directory for the listings, reviews and full moon CSV extracts
  - .gitignore for the warehouse and state files

Use --example to also write sample listings and reviews, ready for
'leapflow run'.`,
		Example: `  # Initialize in current directory
  leapflow init

  # Initialize with sample data
  leapflow init --example

  # Initialize in a new directory
  leapflow init my-project --example

  # Force overwrite existing config
  leapflow init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.OutputMode(cfg.OutputFormat))

			template := "minimal"
			if example {
				template = "example"
			}
			return runInit(r, dir, template, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Include sample listings and reviews")

	return cmd
}

func runInit(r *output.Renderer, dir, template string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configFileName)
	}

	files, err := scaffold(template, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	styles := r.Styles()

	printGroup := func(title string, raw bool) {
		r.Header(2, title)
		for _, f := range files {
			if f.Raw != raw {
				continue
			}
			if f.Kept {
				r.Printf("  %s %s %s\n", styles.Muted.Render("-"), f.Path, styles.Muted.Render("(kept)"))
				continue
			}
			r.Printf("  %s %s\n", styles.Success.Render("✓"), f.Path)
		}
	}
	printGroup("Configuration", false)
	r.Println("")
	printGroup("Raw data", true)
	r.Println("")
	r.Println(styles.Success.Render("LeapFlow project initialized!"))
	r.Println("")
	r.Println("Next steps:")
	if template == "example" {
		r.Println("  leapflow run      Build every model in dependency order")
		r.Println("  leapflow test     Check the data-quality rules")
		r.Println("  leapflow dag      Show the dependency graph")
		r.Println("  leapflow query    Explore the warehouse tables")
	} else {
		r.Println("  1. Add listings.csv and reviews.csv to raw/")
		r.Println("  2. Point target in leapflow.yaml at your warehouse")
		r.Println("  3. Run 'leapflow doctor' to check the project")
		r.Println("  4. Run 'leapflow run' to build the models")
	}

	return nil
}
