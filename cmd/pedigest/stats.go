package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/dataset"
	"github.com/dgallion1/pedigest/internal/record"
)

var (
	statsInput     string
	statsFromStore bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize a dataset file or the configured store",
	Long: `Print aggregate statistics as JSON: record counts, embedding
coverage and category/age-group/chapter distributions. Reads a dataset
file with --input, or the live store with --store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats()
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsInput, "input", "i", "", "dataset JSONL path")
	statsCmd.Flags().BoolVar(&statsFromStore, "store", false, "query the configured store backend instead")
}

func runStats() error {
	if statsInput == "" && !statsFromStore {
		return fmt.Errorf("pass --input FILE or --store")
	}

	var out any
	if statsFromStore {
		cfg := config.Load()
		if err := cfg.ValidateStore(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		stats, err := st.Stats(ctx)
		if err != nil {
			return err
		}
		out = stats
	} else {
		f, err := os.Open(statsInput)
		if err != nil {
			return fmt.Errorf("open %s: %w", statsInput, err)
		}
		records, err := record.ReadJSONL(f)
		f.Close()
		if err != nil {
			return err
		}
		out = dataset.Summarize(records)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
