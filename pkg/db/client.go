package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopflow-backend/pkg/config"
	"github.com/angelmondragon/shopflow-backend/pkg/logger"
)

// maxTxAttempts bounds how often WithTx replays a transaction postgres aborted
// with a deadlock or serialization failure.
const maxTxAttempts = 3

// Pinger is the readiness probe surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client owns the shared gorm pool.
type Client struct {
	conn *gorm.DB
}

// New opens the postgres pool described by cfg. Statements go through pgx in
// simple protocol mode so the pool works behind pgbouncer.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	conn, err := gorm.Open(
		postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}),
		&gorm.Config{
			Logger:                 newQueryLogger(logg, cfg.SlowQueryThreshold),
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	pool, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"max_open_conns":    cfg.MaxOpenConns,
			"slow_query_thresh": cfg.SlowQueryThreshold.String(),
		}), "db.connected")
	}
	return &Client{conn: conn}, nil
}

// Wrap adopts an open handle, sqlite in tests.
func Wrap(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

// IsPostgres reports whether row locking clauses are available.
func (c *Client) IsPostgres() bool {
	return IsPostgres(c.conn)
}

// IsPostgres also works on a transaction handle.
func IsPostgres(conn *gorm.DB) bool {
	return conn != nil && conn.Dialector != nil && conn.Dialector.Name() == "postgres"
}

func (c *Client) Ping(ctx context.Context) error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

func (c *Client) Close() error {
	pool, err := c.conn.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

// WithTx runs fn in one transaction and commits when it returns nil. Every
// repository fn touches must be rebound to tx. fn can run up to maxTxAttempts
// times, so it must not have side effects outside the database.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err = c.transaction(ctx, fn); err == nil || !IsTransient(err) || ctx.Err() != nil {
			break
		}
	}
	return err
}

type commitHooksKey struct{}

type commitHooks struct {
	fns []func()
}

// AfterCommit defers fn until the WithTx transaction that owns tx commits. A
// rolled back or replayed attempt drops its hooks. Outside WithTx fn runs now.
func AfterCommit(tx *gorm.DB, fn func()) {
	if tx != nil && tx.Statement != nil && tx.Statement.Context != nil {
		if hooks, ok := tx.Statement.Context.Value(commitHooksKey{}).(*commitHooks); ok {
			hooks.fns = append(hooks.fns, fn)
			return
		}
	}
	fn()
}

func (c *Client) transaction(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	hooks := &commitHooks{}
	tx := c.conn.WithContext(context.WithValue(ctx, commitHooksKey{}, hooks)).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit().Error; err != nil {
		return err
	}
	committed = true
	for _, hook := range hooks.fns {
		hook()
	}
	return nil
}
