package main

import (
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver for goose
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/ecodex-io/ecodex/migrations"
	"github.com/ecodex-io/ecodex/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply registry schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()

			db, err := goose.OpenDBWithDriver("pgx", conf.Database.Opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			if down {
				return goose.Down(db, ".")
			}
			return goose.Up(db, ".")
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	return cmd
}
