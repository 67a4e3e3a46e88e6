// Package database is the MariaDB persistence layer for the cookbook
// backend.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/matzeds/cookbook/common"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQL connection pool. All queries go through it.
type Store struct {
	db *sql.DB
}

// OpenFromEnv connects using the DB_* environment variables. DB_USER,
// DB_PASSWORD and DB_DATABASE carry no defaults; a missing one is a
// startup configuration error.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	user, err := common.MustEnv("DB_USER")
	if err != nil {
		return nil, err
	}
	password, err := common.MustSecret("DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	dbname, err := common.MustEnv("DB_DATABASE")
	if err != nil {
		return nil, err
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = dbname
	cfg.Net = "tcp"
	cfg.Addr = common.Env("DB_HOST", "127.0.0.1:3306")
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("db config: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetConnMaxLifetime(time.Hour)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	store := &Store{db: db}
	if err := store.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	common.InfoLog("database ready at %s/%s", cfg.Addr, dbname)
	return store, nil
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
