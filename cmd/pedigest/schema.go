package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pedigest/internal/config"
	"github.com/dgallion1/pedigest/internal/store"
)

var schemaApply bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print or apply the Postgres pgvector DDL",
	Long: `Print the CREATE statements for the textbook and resource tables,
indexes and the match_documents function. With --apply the statements
run against DATABASE_URL instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema()
	},
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaApply, "apply", false, "execute the DDL against DATABASE_URL")
}

func runSchema() error {
	cfg := config.Load()

	if !schemaApply {
		for _, stmt := range store.SchemaStatements(cfg.TextbookTable, cfg.ResourceTable) {
			fmt.Fprintf(os.Stdout, "%s;\n\n", stmt)
		}
		return nil
	}

	if cfg.PostgresDSN == "" {
		return fmt.Errorf("DATABASE_URL is required for --apply")
	}
	log := newLogger()

	ctx := context.Background()
	pg, err := store.NewPostgres(ctx, cfg.PostgresDSN, cfg.TextbookTable, cfg.ResourceTable)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}
	log.Info("schema applied", "textbook_table", cfg.TextbookTable, "resource_table", cfg.ResourceTable)
	return nil
}
