// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package csql is the query executor of the backend.

It owns the bounded connection pool. Every logical operation acquires exactly one
session from the pool and runs all of its statements on that session, either
directly (WithConn) or inside a transaction (WithTx). The session is released on
every exit path.
*/
package csql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq" // load database driver for postgres

	"github.com/relabs-tech/hikingclubs/core/apperrors"
	"github.com/relabs-tech/hikingclubs/core/logger"
)

// ErrNoRows is returned by Scan when QueryRow doesn't return a
// row. In such a case, QueryRow returns a placeholder *Row value that
// defers this error until a Scan.
var ErrNoRows = sql.ErrNoRows

// default pool settings, taken over from the original connection pool (min 1, max 3)
const (
	DefaultMaxConnections = 3
	DefaultAcquireTimeout = 5 * time.Second
)

// Querier is implemented by *sql.DB, *sql.Conn and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB encapsulates a standard sql.DB with a schema and a bounded pool
type DB struct {
	*sql.DB
	Schema string
	// AcquireTimeout bounds the time an operation waits for a free session
	AcquireTimeout time.Duration
}

// Options configure the pool
type Options struct {
	Schema         string
	MaxConnections int
	AcquireTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxConnections <= 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.Schema == "" {
		o.Schema = "public"
	}
	return o
}

// New wraps an already opened database handle. It is used with sqlmock in tests.
func New(db *sql.DB, opts Options) *DB {
	opts = opts.withDefaults()
	db.SetMaxOpenConns(opts.MaxConnections)
	db.SetMaxIdleConns(1)
	return &DB{DB: db, Schema: opts.Schema, AcquireTimeout: opts.AcquireTimeout}
}

// Open opens a postgres database. If a schema other than public is requested, it
// is created if it does not exist yet and selected as search path for all sessions.
// The database is not pinged, see OpenWithRetry.
func Open(dataSourceName, password string, opts Options) (*DB, error) {
	opts = opts.withDefaults()
	if password != "" {
		dataSourceName += " password=" + password
	}
	if opts.Schema != "public" {
		dataSourceName += " search_path=" + opts.Schema
	}
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	return New(db, opts), nil
}

// OpenWithRetry opens the database and pings it with exponential backoff until it
// answers or maxElapsed has passed.
func OpenWithRetry(ctx context.Context, dataSourceName, password string, opts Options, maxElapsed time.Duration) (*DB, error) {
	db, err := Open(dataSourceName, password, opts)
	if err != nil {
		return nil, err
	}
	rlog := logger.FromContext(ctx)
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	err = backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		rlog.WithError(err).Warnf("database not reachable, retrying in %s", next)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach database: %w", err)
	}
	if db.Schema != "public" {
		_, err = db.ExecContext(ctx, `CREATE schema IF NOT EXISTS `+db.Schema+`;`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("cannot create schema %s: %w", db.Schema, err)
		}
	}
	rlog.Infoln("connected to postgres database, schema:", db.Schema)
	return db, nil
}

// ClearSchema clears all the data contained in the database's schema
// Technically this is done by dropping the schema and then recreating it
func (db *DB) ClearSchema(ctx context.Context) error {
	if db.Schema == "public" {
		return errors.New("refuse to drop public schema")
	}
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS `+db.Schema+` CASCADE;
	CREATE schema IF NOT EXISTS `+db.Schema+`;`)
	return err
}

// acquire takes one session from the pool. Waiting is bounded by the acquire timeout,
// a timeout is reported as I/O failure.
func (db *DB) acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, db.AcquireTimeout)
	defer cancel()
	conn, err := db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.IO(apperrors.Unavailable, err, "no database session available within %s", db.AcquireTimeout)
		}
		return nil, apperrors.IO(apperrors.Unavailable, err, "cannot acquire database session")
	}
	return conn, nil
}

// WithConn runs fn on one session from the pool and releases it afterwards
func (db *DB) WithConn(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		return fn(ctx, conn)
	})
}

func (db *DB) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.FromContext(ctx).WithError(cerr).Errorln("cannot release database session")
		}
	}()
	return fn(conn)
}

// WithTx runs fn in a transaction on one session from the pool. The transaction is
// committed if fn returns nil and rolled back otherwise. A panic in fn rolls back as
// well and is re-raised.
func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx Querier) error) error {
	return db.withConn(ctx, func(conn *sql.Conn) (err error) {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return apperrors.IO(apperrors.Unavailable, err, "cannot begin transaction")
		}
		defer func() {
			if p := recover(); p != nil {
				tx.Rollback()
				panic(p)
			}
			if err != nil {
				if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
					logger.FromContext(ctx).WithError(rerr).Errorln("cannot rollback transaction")
				}
				return
			}
			if cerr := tx.Commit(); cerr != nil {
				err = apperrors.IO(apperrors.Unavailable, cerr, "cannot commit transaction")
			}
		}()
		return fn(ctx, tx)
	})
}

// Ping checks whether a session can be acquired and the database answers
func (db *DB) Ping(ctx context.Context) error {
	return db.withConn(ctx, func(conn *sql.Conn) error {
		return conn.PingContext(ctx)
	})
}
