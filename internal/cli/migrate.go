package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"adaptive-quiz-service/internal/bank"
	"adaptive-quiz-service/internal/config"
	pgstore "adaptive-quiz-service/internal/infra/postgres"
	pgmigrations "adaptive-quiz-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath, false)
			if err != nil {
				return err
			}
			return runMigrationsWithConfig(cmd.Context(), cfg, log)
		},
	}
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("database schema is up to date")
		return nil
	}
	log.Info("migrations applied", zap.String("group", group.String()))
	return nil
}

// NewImportCmd stores a question file in Postgres under a set id.
func NewImportCmd(configPath *string) *cobra.Command {
	var setID string
	cmd := &cobra.Command{
		Use:   "import <questions-file>",
		Short: "Validate a question file and store it in Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*configPath, false)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			b, err := bank.Parse(data)
			if err != nil {
				return err
			}
			// question_sets.data is JSONB; YAML input is stored normalised.
			doc, err := json.Marshal(b.Questions())
			if err != nil {
				return err
			}
			if setID == "" {
				setID = cfg.Questions.SetID
			}

			ctx := cmd.Context()
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := pgstore.PutQuestionSet(ctx, pool, setID, doc); err != nil {
				return err
			}
			log.Info("question set imported", zap.String("set_id", setID), zap.Int("questions", b.Len()))
			return nil
		},
	}
	cmd.Flags().StringVar(&setID, "set", "", "question set id (defaults to questions.setId)")
	return cmd
}
