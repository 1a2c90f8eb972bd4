// Command phraseql loads tabular files into a relational or document
// store and answers phrase queries against them.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/phraseql/phraseql"
	"github.com/phraseql/phraseql/domain/model"
	"github.com/phraseql/phraseql/driver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app holds the wired engine and the store handles that need closing.
type app struct {
	logger *slog.Logger
	engine *phraseql.Engine

	sqlitePath string
	mongoURI   string
	mongoDB    string
	verbose    bool

	relational *driver.Relational
	document   *driver.Document
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "phraseql",
		Short: "Load tabular files and query them with phrases",
		Long: `phraseql ingests CSV, TSV, JSON, XLSX, and Parquet files, infers a
schema for each, materializes them into SQLite or MongoDB, and answers a
fixed set of phrase queries against the stored data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cmd.PersistentFlags().StringVar(&a.sqlitePath, "sqlite", envOr("PHRASEQL_SQLITE_PATH", "phraseql.db"), "SQLite database path")
	cmd.PersistentFlags().StringVar(&a.mongoURI, "mongo-uri", os.Getenv("PHRASEQL_MONGO_URI"), "MongoDB connection URI (document backend disabled when empty)")
	cmd.PersistentFlags().StringVar(&a.mongoDB, "mongo-db", envOr("PHRASEQL_MONGO_DB", "phraseql"), "MongoDB database name")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newLoadCmd(a), newQueryCmd(a), newDatasetsCmd(a))
	return cmd
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// setup opens the configured stores and hydrates the engine registry so
// datasets loaded by earlier invocations stay queryable.
func (a *app) setup(ctx context.Context) error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	relational, err := driver.OpenRelational(ctx, a.sqlitePath, a.logger)
	if err != nil {
		return err
	}
	a.relational = relational

	cfg := phraseql.Config{Relational: relational}
	if a.mongoURI != "" {
		document, err := driver.OpenDocument(ctx, a.mongoURI, a.mongoDB, a.logger)
		if err != nil {
			_ = relational.Close()
			return err
		}
		a.document = document
		cfg.Document = document
	}

	a.engine = phraseql.NewEngine(cfg)
	return a.engine.Hydrate(ctx)
}

func (a *app) teardown(ctx context.Context) {
	if a.relational != nil {
		_ = a.relational.Close()
	}
	if a.document != nil {
		_ = a.document.Close(ctx)
	}
}

func newLoadCmd(a *app) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "load <file>...",
		Short: "Ingest files into the chosen backend",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			defer a.teardown(ctx)

			target, err := model.ParseBackend(backend)
			if err != nil {
				return err
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				source := phraseql.NewSource(filepath.Base(path), data, target)
				dataset, skipped, err := a.engine.Ingest(ctx, source)
				if err != nil {
					return err
				}
				a.logger.Info("loaded dataset",
					"name", dataset.Name, "backend", dataset.Backend.String(),
					"rows", dataset.Rows, "skipped", skipped)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows (%d skipped)\n", dataset.Name, dataset.Rows, skipped)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&backend, "backend", "b", "relational", "target backend (relational or document)")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <phrase>",
		Short: "Run a phrase query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			defer a.teardown(ctx)

			phrase := strings.Join(args, " ")
			result, err := a.engine.Query(ctx, phrase)
			if err != nil {
				return err
			}
			if result.Query != nil {
				a.logger.Debug("translated query",
					"sql", result.Query.SQL, "collection", result.Query.Collection)
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
}

func newDatasetsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List every known dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.setup(ctx); err != nil {
				return err
			}
			defer a.teardown(ctx)

			return printResult(cmd.OutOrStdout(), &phraseql.Result{
				Kind:     model.IntentListDatasets,
				Datasets: a.engine.Datasets(),
			})
		},
	}
}

// printResult writes a result as aligned plain text.
func printResult(out io.Writer, result *phraseql.Result) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	switch result.Kind {
	case model.IntentListDatasets:
		fmt.Fprintln(w, "NAME\tBACKEND\tROWS")
		for _, dataset := range result.Datasets {
			fmt.Fprintf(w, "%s\t%s\t%d\n", dataset.Name, dataset.Backend.String(), dataset.Rows)
		}
	case model.IntentDescribeDataset:
		for _, dataset := range result.Datasets {
			fmt.Fprintf(w, "%s (%s, %d rows)\n", dataset.Name, dataset.Backend.String(), dataset.Rows)
			fmt.Fprintln(w, "FIELD\tTYPE\tNULLABLE")
			for _, col := range dataset.Columns {
				fmt.Fprintf(w, "%s\t%s\t%t\n", col.Name, col.Type.String(), col.Nullable)
			}
		}
	default:
		if len(result.Rows) == 0 {
			fmt.Fprintln(w, "no results")
			break
		}
		columns := resultColumns(result.Rows)
		fmt.Fprintln(w, strings.ToUpper(strings.Join(columns, "\t")))
		for _, row := range result.Rows {
			cells := make([]string, len(columns))
			for i, col := range columns {
				cells[i] = fmt.Sprint(row[col])
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	}
	return w.Flush()
}

// resultColumns collects the union of row keys in sorted order, since map
// iteration would shuffle columns between runs.
func resultColumns(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	return columns
}
