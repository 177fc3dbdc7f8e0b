package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/leapflow/pkg/adapter"
	"github.com/spf13/cobra"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Format string
	Input  string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Query the warehouse",
		Long: `Query the target warehouse directly.

Execute SQL against the tables written by the pipeline to inspect listings,
reviews and the neighbourhood metrics. Supports multiple output formats for
scripting and integration.

When invoked without arguments, enters interactive REPL mode.`,
		Example: `  # Execute SQL directly
  leapflow query "SELECT * FROM dim_listings LIMIT 5"

  # List the pipeline tables present in the warehouse
  leapflow query tables

  # Show columns of a table
  leapflow query schema agg_neighbourhood_metrics

  # Output as JSON
  leapflow query "SELECT * FROM mart_fullmoon_reviews" --format json

  # Interactive mode
  leapflow query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "table", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")

	cmd.AddCommand(newQueryTablesCommand(opts))
	cmd.AddCommand(newQuerySchemaCommand(opts))

	return cmd
}

// openWarehouse connects the configured target warehouse.
func openWarehouse(cmd *cobra.Command) (*CommandContext, adapter.Adapter, error) {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	if err := cmdCtx.Cfg.Validate(); err != nil {
		return nil, nil, err
	}
	adp, err := adapter.Open(cmd.Context(), cmdCtx.Cfg.Target.AdapterConfig(), cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cmdCtx, adp, nil
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	var sqlQuery string

	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	}

	cmdCtx, adp, err := openWarehouse(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = adp.Close() }()

	if sqlQuery == "" {
		return runQueryREPL(cmd, cmdCtx, adp, opts)
	}
	return executeAndRender(cmd.Context(), cmd.OutOrStdout(), adp, sqlQuery, opts.Format)
}

func executeAndRender(ctx context.Context, w io.Writer, adp adapter.Adapter, sqlQuery, format string) error {
	rs, err := adapter.ReadAll(ctx, adp, sqlQuery)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return renderResults(w, rs, format)
}

// newQueryTablesCommand creates the tables subcommand.
func newQueryTablesCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the raw and pipeline tables present in the warehouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, adp, err := openWarehouse(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = adp.Close() }()

			tables, err := pipelineTables(cmd.Context(), cmdCtx, adp)
			if err != nil {
				return err
			}
			return renderResults(cmd.OutOrStdout(), tables, opts.Format)
		},
	}
}

// newQuerySchemaCommand creates the schema subcommand.
func newQuerySchemaCommand(opts *QueryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the columns of a warehouse table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, adp, err := openWarehouse(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = adp.Close() }()

			table := qualifyTable(args[0], cmdCtx.Cfg.Target.Schema)
			return showSchema(cmd.Context(), cmd.OutOrStdout(), adp, table, opts.Format)
		},
	}
}

// qualifyTable prefixes an unqualified table with schema.
func qualifyTable(table, schema string) string {
	if strings.Contains(table, ".") || schema == "" {
		return table
	}
	return schema + "." + table
}

// pipelineTables lists the raw tables in the raw schema and the model tables
// in the target schema that currently exist, with their row counts.
func pipelineTables(ctx context.Context, cmdCtx *CommandContext, adp adapter.Adapter) (*adapter.ResultSet, error) {
	eng, err := createPlanningEngine(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.Close() }()

	reg := eng.Registry()
	order, err := reg.Resolve()
	if err != nil {
		return nil, err
	}

	rs := &adapter.ResultSet{Columns: []string{"table", "schema", "layer", "rows"}}
	add := func(schema, name, layer string) error {
		ok, err := adp.TableExists(ctx, schema, name)
		if err != nil || !ok {
			return err
		}
		var count int64
		if meta, err := adp.GetTableMetadata(ctx, qualifyTable(name, schema)); err == nil {
			count = meta.RowCount
		}
		rs.Rows = append(rs.Rows, []any{name, adp.Dialect().ResolveSchema(schema), layer, count})
		return nil
	}

	for _, name := range reg.Sources() {
		if err := add(cmdCtx.Cfg.RawSchema, name, "raw"); err != nil {
			return nil, err
		}
	}
	for _, name := range order {
		layer, _ := modelInfo(reg, name)
		if err := add(cmdCtx.Cfg.Target.Schema, name, layer); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
