package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PipelineService wraps the optional Postgres connection used to mirror
// the extracted panel.
type PipelineService struct {
	DB *bun.DB
}

// CreatePipelineService connects to Postgres using the PG_DB_* environment
// variables. PG_DB_NAME defaults to kev_epss.
func CreatePipelineService() (*PipelineService, error) {
	host := os.Getenv("PG_DB_HOST")
	if host == "" {
		return nil, fmt.Errorf("PG_DB_HOST is not set")
	}
	port := os.Getenv("PG_DB_PORT")
	if port == "" {
		return nil, fmt.Errorf("PG_DB_PORT is not set")
	}
	user := os.Getenv("PG_DB_USER")
	if user == "" {
		return nil, fmt.Errorf("PG_DB_USER is not set")
	}
	password := os.Getenv("PG_DB_PASSWORD")
	if password == "" {
		return nil, fmt.Errorf("PG_DB_PASSWORD is not set")
	}
	name := os.Getenv("PG_DB_NAME")
	if name == "" {
		name = "kev_epss"
	}

	dsn := "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithTimeout(120*time.Second)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot connect to panel database %q: %v", name, err)
	}

	log.Printf("Pipeline service connected to panel database %q", name)
	return &PipelineService{DB: db}, nil
}

// Close closes the database connection.
func (s *PipelineService) Close() {
	if s.DB != nil {
		s.DB.Close()
	}
}
