package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hyperflow-wms/mosaic/pkg/hyperflow"
	"github.com/hyperflow-wms/mosaic/pkg/montage"
	"github.com/hyperflow-wms/mosaic/pkg/replica"
	"github.com/hyperflow-wms/mosaic/pkg/wfformat"
	"github.com/hyperflow-wms/mosaic/pkg/workflow"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mosaic",
		Short: "mosaic — astronomical-mosaicking workflow compiler",
		Long: `Mosaic generates abstract task graphs for the Montage toolkit and
compiles them into executable workflow representations.

The generator drives the native Montage tools to plan one mosaic per
imaging band; the resulting graph can be emitted as an abstract YAML
document or a WfFormat (schema 1.5) specification, and either form
compiles into a HyperFlow dataflow program.`,
	}
	root.AddCommand(generateCmd())
	root.AddCommand(compileCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(fetchCmd())
	return root
}

// ─── generate ─────────────────────────────────────────────────────────────────

func generateCmd() *cobra.Command {
	var (
		workDir string
		name    string
		center  string
		degrees float64
		bands   []string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a mosaic workflow graph by driving the Montage toolkit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			ctx := signalContext(cmd.Context())

			dataDir := filepath.Join(workDir, "data")
			if _, err := os.Stat(dataDir); err == nil {
				return fmt.Errorf("%s already exists", dataDir)
			}
			if err := os.MkdirAll(dataDir, 0o755); err != nil {
				return fmt.Errorf("create data directory: %w", err)
			}

			ra, dec, err := montage.NewResolver().Resolve(ctx, center)
			if err != nil {
				return err
			}
			logger.Info("region center resolved", "center", center, "ra", ra, "dec", dec)

			var bandDefs []montage.Band
			for _, spec := range bands {
				band, err := montage.ParseBand(spec)
				if err != nil {
					return err
				}
				bandDefs = append(bandDefs, band)
			}

			builder := &montage.Builder{
				Toolkit: &montage.ExecToolkit{Dir: dataDir},
				Dir:     dataDir,
				Log:     logger,
			}
			wf, err := builder.Build(ctx, montage.Request{
				Name:    name,
				RA:      ra,
				Dec:     dec,
				Degrees: degrees,
				Bands:   bandDefs,
			})
			if err != nil {
				return err
			}

			rcPath := filepath.Join(dataDir, "rc.txt")
			if err := replica.WriteCatalog(rcPath, wf); err != nil {
				return err
			}
			logger.Info("replica catalog written", "path", rcPath)

			switch format {
			case "yaml":
				out := filepath.Join(dataDir, "montage-workflow.yml")
				if err := wf.Document().Write(out); err != nil {
					return err
				}
				logger.Info("workflow written", "path", out)
			case "wfformat":
				out := filepath.Join(dataDir, "montage-workflow.json")
				doc := wfformat.Compile(wf)
				if err := doc.Write(out); err != nil {
					return err
				}
				logger.Info("workflow written", "path", out,
					"tasks", len(doc.Workflow.Specification.Tasks),
					"files", len(doc.Workflow.Specification.Files))
			default:
				return fmt.Errorf("unknown format %q: use yaml or wfformat", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "work-dir", ".", "directory to create the data/ directory in")
	cmd.Flags().StringVar(&name, "name", "montage", "workflow label")
	cmd.Flags().StringVar(&center, "center", "", "center of the output, e.g. M17 or \"56.5 23.75\"")
	cmd.Flags().Float64Var(&degrees, "degrees", 0, "side length of the square output region, in degrees")
	cmd.Flags().StringArrayVar(&bands, "band", nil, "band definition, e.g. dss:DSS2B:red (repeatable)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: yaml or wfformat")
	cmd.MarkFlagRequired("center")
	cmd.MarkFlagRequired("degrees")
	cmd.MarkFlagRequired("band")
	return cmd
}

// ─── compile ──────────────────────────────────────────────────────────────────

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <workflow.{yml,json}> <program.json>",
		Short: "Compile a workflow document into a HyperFlow dataflow program",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			in, out := args[0], args[1]

			var (
				prog         *hyperflow.Program
				tasks, files int
			)
			switch filepath.Ext(in) {
			case ".yml", ".yaml":
				doc, err := workflow.LoadDocument(in)
				if err != nil {
					return err
				}
				prog = hyperflow.CompileWorkflow(doc)
				tasks, files = len(doc.Tasks), len(doc.Files)
			case ".json":
				doc, err := wfformat.Load(in)
				if err != nil {
					return err
				}
				prog = hyperflow.CompileSpec(doc)
				tasks = len(doc.Workflow.Specification.Tasks)
				files = len(doc.Workflow.Specification.Files)
			default:
				return fmt.Errorf("unknown input format %q: want .yml, .yaml or .json", filepath.Ext(in))
			}

			if err := prog.Write(out); err != nil {
				return err
			}
			fmt.Printf("Compiled %s to %s\n", in, out)
			fmt.Printf("  Tasks: %d\n", tasks)
			fmt.Printf("  Files: %d\n", files)
			fmt.Printf("  Processes: %d\n", len(prog.Processes))
			fmt.Printf("  Signals: %d\n", len(prog.Signals))
			return nil
		},
	}
	return cmd
}

// ─── validate ─────────────────────────────────────────────────────────────────

func validateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <workflow.yml>",
		Short: "Check a workflow document for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			res := workflow.ValidateFile(args[0])

			if len(res.Errors) > 0 {
				fmt.Printf("Errors (%d):\n", len(res.Errors))
				for _, e := range res.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}
			if len(res.Warnings) > 0 {
				fmt.Printf("Warnings (%d):\n", len(res.Warnings))
				for _, w := range res.Warnings {
					fmt.Printf("  - %s\n", w)
				}
			}

			if !res.OK() {
				return fmt.Errorf("validation failed with %d errors", len(res.Errors))
			}
			if strict && len(res.Warnings) > 0 {
				return fmt.Errorf("validation failed: %d warnings treated as errors", len(res.Warnings))
			}

			if doc, err := workflow.LoadDocument(args[0]); err == nil {
				fmt.Printf("OK: workflow %q is valid (%d files, %d tasks)\n",
					doc.Name, len(doc.Files), len(doc.Tasks))
			} else {
				fmt.Println("OK: workflow is valid")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	return cmd
}

// ─── stats ────────────────────────────────────────────────────────────────────

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <workflow.yml>",
		Short: "Print statistics about a workflow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := workflow.LoadDocument(args[0])
			if err != nil {
				return err
			}
			fmt.Print(workflow.RenderStats(doc))
			return nil
		},
	}
}

// ─── fetch ────────────────────────────────────────────────────────────────────

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <rc.txt> [output-dir]",
		Short: "Download the remote files of a replica catalog",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := replica.ParseCatalogFile(args[0])
			if err != nil {
				return err
			}
			dir := "."
			if len(args) > 1 {
				dir = args[1]
			}
			fetcher := replica.NewFetcher(newLogger())
			return fetcher.FetchAll(signalContext(cmd.Context()), entries, dir)
		},
	}
	return cmd
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func newLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "mosaic",
	})
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[mosaic] interrupted — aborting")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
