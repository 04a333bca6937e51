package cli

import (
	"fmt"
	"log"

	"personality-quiz-service/internal/config"
	"personality-quiz-service/internal/infra/csvfile"
	pgloader "personality-quiz-service/internal/infra/postgres"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewImportCmd loads the CSV catalog into Postgres so serve can run without
// the file present.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import the CSV question catalog into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Catalog.CSVPath == "" {
				return fmt.Errorf("catalog.csvPath not configured")
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}

			catalogID := cfg.Catalog.ID
			if catalogID == "" {
				catalogID = "default"
			}
			catalog, err := csvfile.NewLoader(cfg.Catalog.CSVPath).LoadCatalog(ctx, catalogID)
			if err != nil {
				return err
			}

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pgloader.NewCatalogLoader(pool).SaveCatalog(ctx, catalog); err != nil {
				return err
			}
			log.Printf("imported %d questions into catalog %q", len(catalog.Questions), catalogID)
			return nil
		},
	}
}
