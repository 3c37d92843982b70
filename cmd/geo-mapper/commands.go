package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/audit"
	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/db"
	"github.com/geo-mapper/internal/engine"
	import_pkg "github.com/geo-mapper/internal/import"
	"github.com/geo-mapper/internal/match"
	"github.com/geo-mapper/internal/normalize"
	"github.com/geo-mapper/internal/web"
)

// createRunCmd creates the run subcommand
func createRunCmd() *cobra.Command {
	var opts engine.RunOptions
	var autoExport bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Map an input table to geodata and export the results",
		Example: `  geo-mapper run --data kreise.xlsx --json kreise_meta.json
  geo-mapper run --data gemeinden.csv --name-column Gemeinde --level LAU --year 2021`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "" && opts.Format != config.FormatCSV &&
				opts.Format != config.FormatXLSX && opts.Format != config.FormatBoth {
				return fmt.Errorf("invalid --format %q", opts.Format)
			}
			if cmd.Flags().Changed("auto-export-source") {
				opts.AutoExportSource = &autoExport
			}

			runner := engine.NewRunner(cfg, log)
			if cfg.Database.Enabled {
				conn, err := db.NewConnection(cmd.Context(), cfg.Database)
				if err != nil {
					return err
				}
				defer conn.Close()
				tracker := audit.NewTracker(conn.DB, cfg.Log.Debug)
				if err := tracker.EnsureSchema(cmd.Context()); err != nil {
					return err
				}
				runner.SetRecorder(tracker)
			}

			report, err := runner.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.DataPath, "data", "", "input table (.csv, .xlsx)")
	f.StringVar(&opts.MetaPath, "json", "", "meta configuration (.json, .yaml)")
	f.StringVar(&opts.Sheet, "sheet", "", "worksheet of an Excel input")
	f.StringSliceVar(&opts.IDColumns, "id-columns", nil, "id columns, comma separated")
	f.StringVar(&opts.NameColumn, "name-column", "", "name column")
	f.StringSliceVar(&opts.ValueColumns, "value-columns", nil, "value columns passed through to the export")
	f.StringSliceVar(&opts.Mappers, "mappers", nil, "strategy order (default: automatic)")
	f.StringVar(&opts.Level, "level", "", "geodata level: LAU, NUTS or NUTS <0-3>")
	f.StringVar(&opts.Year, "year", "", "geodata year")
	f.BoolVar(&autoExport, "auto-export-source", true, "export the best ranked dataset only")
	f.StringVar(&opts.ExportSource, "export-source", "", "geodata file to export (path or file name)")
	f.StringVar(&opts.Format, "format", "", "export format: csv, xlsx or both")
	f.StringVar(&opts.OutputDir, "output", "", "results directory (default <results_root>/<input name>)")
	f.BoolVar(&opts.ExportGeodata, "export-geodata", false, "copy the exported geodata CSV next to the results")
	cmd.MarkFlagRequired("data")

	return cmd
}

func printReport(report *engine.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run %s (%s)\n", report.RunID, report.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "DATASET\tMATCHED\tINPUT %\tUSED\tREFERENCE %\tEXPORTED")
	exported := make(map[*match.DatasetResult]bool)
	for _, dr := range report.Exported {
		exported[dr] = true
	}
	for _, dr := range report.Result.Datasets {
		mark := ""
		if exported[dr] {
			mark = "✓"
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%.1f\t%d/%d\t%.1f\t%s\n",
			dr.Dataset.Source,
			dr.Coverage.MatchedRows, dr.Coverage.InputRows, dr.Coverage.InputShare(),
			dr.Coverage.UsedIDs, dr.Coverage.ReferenceRows, dr.Coverage.ReferenceShare(),
			mark)
	}
	w.Flush()
	if report.ManualBound > 0 {
		fmt.Printf("Manual mappings applied: %d\n", report.ManualBound)
	}
	fmt.Printf("Results written to %s\n", report.OutputDir)
}

// createServeCmd creates the serve subcommand
func createServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolver over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			datasets, err := loadCatalogue(cmd, cfg.Geodata.Level, cfg.Geodata.Year)
			if err != nil {
				return err
			}

			deps := web.Dependencies{
				Datasets: datasets,
				Resolver: match.NewResolver(match.ResolverConfig{
					Registry: match.DefaultRegistry(cfg.Mapping.MaxTokens, nil),
					Logger:   log,
				}),
				Manual: match.NewManual(log),
			}
			if cfg.Database.Enabled {
				conn, err := db.NewConnection(ctx, cfg.Database)
				if err != nil {
					return err
				}
				defer conn.Close()
				tracker := audit.NewTracker(conn.DB, cfg.Log.Debug)
				if err := tracker.EnsureSchema(ctx); err != nil {
					return err
				}
				deps.Runs = tracker
			}

			return web.NewServer(cfg, deps, log).Start(ctx)
		},
	}
}

func loadCatalogue(cmd *cobra.Command, level, year string) ([]*match.Dataset, error) {
	family, nutsLevel, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	loader := import_pkg.NewLoader(log)
	return loader.LoadGeodata(cmd.Context(), import_pkg.GeodataSelection{
		Root:      cfg.Geodata.Root,
		Family:    family,
		NUTSLevel: nutsLevel,
		Year:      year,
	})
}

// createNormalizeCmd creates the normalize subcommand
func createNormalizeCmd() *cobra.Command {
	var asID bool
	cmd := &cobra.Command{
		Use:   "normalize [text...]",
		Short: "Show the normalized forms of names or ids",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			for _, arg := range args {
				if asID {
					id, _ := normalize.ID(arg, false)
					stripped, _ := normalize.ID(arg, true)
					fmt.Printf("%q\tid=%q\tstripped=%q\n", arg, id, stripped)
					continue
				}
				fmt.Printf("%q\ttext=%q\tnospace=%q\ttokens=%q\n",
					arg, normalize.Text(arg), normalize.NoSpace(arg), normalize.TokenSortKey(arg))
			}
		},
	}
	cmd.Flags().BoolVar(&asID, "id", false, "normalize as identifier")
	return cmd
}

// createDatasetsCmd creates the datasets subcommand
func createDatasetsCmd() *cobra.Command {
	var level, year string
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the geodata catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			datasets, err := loadCatalogue(cmd, firstSet(level, cfg.Geodata.Level), firstSet(year, cfg.Geodata.Year))
			if err != nil {
				return err
			}
			if len(datasets) == 0 {
				log.Warn("No geodata found", zap.String("root", cfg.Geodata.Root))
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LEVEL\tYEAR\tENTITIES\tCOLUMNS\tPATH")
			for _, ds := range datasets {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					engine.LevelFromPath(ds.Source), engine.YearFromPath(ds.Source),
					len(ds.Entities), strings.Join(ds.Columns, ","), ds.Source)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "geodata level: LAU, NUTS or NUTS <0-3>")
	cmd.Flags().StringVar(&year, "year", "", "geodata year")
	return cmd
}

// createDBCmd creates database management commands
func createDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}
	dbCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the audit tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := audit.NewTracker(conn.DB, cfg.Log.Debug).EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("✓ Audit schema ready")
			return nil
		},
	})
	return dbCmd
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
