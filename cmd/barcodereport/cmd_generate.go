package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/JonMunkholm/barcodereport/internal/history"
	"github.com/spf13/cobra"
)

var generateFlags struct {
	input   string
	output  string
	title   string
	workers int
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the PDF report from an input file",
	Long: `Reads the input file, encodes every non-empty value as a Code 128 barcode
and writes the PDF report. Values that cannot be encoded appear as
placeholders; only a missing input or a failed write stops the run.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.input, "input", "i", "", "Input file (default $REPORT_INPUT or input.txt)")
	f.StringVarP(&generateFlags.output, "output", "o", "", "Output PDF (default $REPORT_OUTPUT or barcode_report.pdf)")
	f.StringVar(&generateFlags.title, "title", "", "Report title (default $REPORT_TITLE)")
	f.IntVar(&generateFlags.workers, "workers", 0, "Fields encoded in parallel per row (default $REPORT_WORKERS)")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg := app.cfg
	if generateFlags.input != "" {
		cfg.Report.InputPath = generateFlags.input
	}
	if generateFlags.output != "" {
		cfg.Report.OutputPath = generateFlags.output
	}
	if generateFlags.title != "" {
		cfg.Report.Title = generateFlags.title
	}
	if generateFlags.workers > 0 {
		cfg.Report.Workers = generateFlags.workers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, closeHistory := openHistory(ctx, cfg)
	defer closeHistory()

	pipeline := core.NewPipeline(core.OptionsFromConfig(cfg))
	res, err := pipeline.Generate(ctx, cfg.Report.InputPath, cfg.Report.OutputPath)

	if rerr := recorder.Record(ctx, history.FromResult(history.SourceCLI, res, err)); rerr != nil {
		slog.Warn("failed to record report run", "run_id", res.RunID, "error", rerr)
	}

	if err != nil {
		if errors.Is(err, core.ErrInputUnavailable) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Hint: run \"barcodereport sample -o %s\" to create a sample input file.\n",
				cfg.Report.InputPath)
		}
		return err
	}

	if n := len(res.Failures); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d of %d value(s) could not be encoded and appear as placeholders.\n",
			n, res.Fields)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Barcode report generated successfully: %s\n", res.Output)
	return nil
}
