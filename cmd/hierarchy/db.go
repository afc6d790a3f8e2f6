package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecodex-io/ecodex/pkg/configuration"
)

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	return pgxpool.New(ctx, conf.Database.Opts)
}
