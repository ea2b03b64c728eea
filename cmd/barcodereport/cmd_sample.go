package main

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/barcodereport/internal/core"
	"github.com/spf13/cobra"
)

var sampleFlags struct {
	output string
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a small sample input file",
	Long:  "Writes a sample input file. An existing file is never overwritten.",
	Args:  cobra.NoArgs,
	RunE:  runSample,
}

func init() {
	sampleCmd.Flags().StringVarP(&sampleFlags.output, "output", "o", "", "Sample file path (default $REPORT_INPUT or input.txt)")
}

func runSample(cmd *cobra.Command, _ []string) error {
	path := app.cfg.Report.InputPath
	if sampleFlags.output != "" {
		path = sampleFlags.output
	}

	err := core.WriteSample(path)
	switch {
	case errors.Is(err, core.ErrSampleExists):
		fmt.Fprintf(cmd.OutOrStdout(), "Input file already exists, left unchanged: %s\n", path)
		return nil
	case err != nil:
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sample input written: %s\n", path)
	return nil
}
