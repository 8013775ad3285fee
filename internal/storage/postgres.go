package storage

import (
	"botfleet/internal/config"

	"github.com/go-pg/pg/v10"
)

// NewPostgres opens a go-pg connection pool from config, matching the
// reference layout's dependency-construction style (server/dependency.go).
func NewPostgres(cfg config.PostgresConfig) *pg.DB {
	return pg.Connect(&pg.Options{
		Addr:     cfg.Addr,
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
	})
}
