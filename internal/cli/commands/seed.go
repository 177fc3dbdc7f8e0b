package commands

import (
	"github.com/leapstack-labs/leapflow/internal/cli/output"
	"github.com/leapstack-labs/leapflow/internal/engine"
	"github.com/leapstack-labs/leapflow/internal/source"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	var embedded bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load raw CSV files into the warehouse",
		Long: `Copy every CSV file of the raw directory into the raw schema of the
warehouse, each table replaced atomically with all columns as text.

Once seeded, a run finds its raw tables in the warehouse whenever the raw
directory no longer has them.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Load raw/*.csv into the raw schema
  leapflow seed

  # Load from another directory into another schema
  leapflow seed --raw-dir ./exports --raw-schema landing

  # Load the bundled full-moon calendar and sample data
  leapflow seed --embedded`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, embedded)
		},
	}

	cmd.Flags().BoolVar(&embedded, "embedded", false, "Load the bundled seed tables instead of the raw directory")
	return cmd
}

func runSeed(cmd *cobra.Command, embedded bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	var src engine.SeedSource = source.NewCSVProvider(cfg.RawDir)
	origin := cfg.RawDir
	if embedded {
		src = source.NewSeedProvider()
		origin = "embedded seeds"
	}

	loaded, err := cmdCtx.Engine.LoadSeeds(cmd.Context(), src, cfg.RawSchema)
	if err != nil {
		return err
	}

	report := output.SeedReport{Schema: cfg.RawSchema, Tables: make([]output.SeedTable, 0, len(loaded))}
	for _, t := range loaded {
		report.Tables = append(report.Tables, output.SeedTable{Name: t.Name, Rows: t.Rows})
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(report)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Seeds"))
		r.Println("")
	default:
		r.Header(1, "Seeds")
	}

	if len(loaded) == 0 {
		r.Println("No CSV files found in " + origin)
		return nil
	}

	rows := make([][]any, 0, len(loaded))
	for _, t := range report.Tables {
		rows = append(rows, []any{t.Name, t.Rows})
	}
	r.Table([]string{"Table", "Rows"}, rows)
	r.Println("")
	r.Println(r.Styles().Muted.Render("Loaded " + pluralize(len(loaded), "table") + " from " + origin + " into " + cfg.RawSchema))
	return nil
}
