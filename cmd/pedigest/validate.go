package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pedigest/internal/dataset"
)

var validateInput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSONL dataset and print a report",
	Long: `Check every line of a dataset: JSON shape, required fields, content
length and text quality. The report goes to stdout as JSON; the command
fails if any line has problems.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateInput, "input", "i", "", "dataset JSONL path (required)")
	validateCmd.MarkFlagRequired("input")
}

func runValidate() error {
	f, err := os.Open(validateInput)
	if err != nil {
		return fmt.Errorf("open %s: %w", validateInput, err)
	}
	defer f.Close()

	report, err := dataset.Validate(f)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	if !report.Passed() {
		return fmt.Errorf("validation failed: %d content errors, %d field errors",
			len(report.ContentErrors), len(report.FieldErrors))
	}
	return nil
}
