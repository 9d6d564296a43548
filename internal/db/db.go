package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/parisxmas/intake/internal/fault"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB wraps a sqlx handle with a keepalive ping loop.
type DB struct {
	*sqlx.DB
	Driver string
	stop   chan struct{}
}

// Open connects to driver/dsn, caps the pool at size connections and
// starts pinging every 30 seconds so broken connections are noticed.
func Open(driver, dsn string, size int) (*DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}
	x, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if driver == DriverSQLite {
		// a single connection keeps in-memory databases shared
		size = 1
	}
	if size < 1 {
		size = 1
	}
	x.SetMaxOpenConns(size)
	x.SetMaxIdleConns(size)
	if driver == DriverPostgres {
		x.SetConnMaxIdleTime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := x.PingContext(ctx); err != nil {
		x.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	if driver == DriverSQLite {
		if _, err := x.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			x.Close()
			return nil, fmt.Errorf("db: enable foreign keys: %w", err)
		}
	}

	d := &DB{DB: x, Driver: driver, stop: make(chan struct{})}
	go d.keepalive(30 * time.Second)
	return d, nil
}

func (d *DB) keepalive(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := d.PingContext(ctx); err != nil {
				log.Printf("db: ping failed: %v", err)
			}
			cancel()
		}
	}
}

// Close stops the keepalive loop and closes the pool.
func (d *DB) Close() error {
	close(d.stop)
	return d.DB.Close()
}

// InTx runs fn in a transaction, committing when fn returns nil.
func (d *DB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := d.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Classify maps driver constraint errors onto fault sentinels. Other errors
// pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fault.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fault.ErrUniqueViolation
		case "23503":
			return fault.ErrForeignKeyViolation
		}
		return err
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fault.ErrUniqueViolation
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fault.ErrForeignKeyViolation
		}
	}
	return err
}
