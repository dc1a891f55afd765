package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/utils"
	sf "github.com/snowflakedb/gosnowflake"
)

type (
	// Row is a single result row.
	Row interface {
		Scan(dest ...any) error
	}

	// Execer runs statements.
	Execer interface {
		// Exec runs a single statement with bound arguments.
		Exec(ctx context.Context, query string, args ...any) error

		// ExecScript runs a script that may hold any number of statements.
		ExecScript(ctx context.Context, script string) error
	}

	// Tx is an open transaction on the client's session.
	Tx interface {
		Execer
		Commit() error
		Rollback() error
	}

	// Client is a single Snowflake session.
	Client struct {
		db       *sql.DB
		conn     *sql.Conn
		database string
	}

	tx struct {
		tx *sql.Tx
	}
)

// Open establishes a session described by cfg.
func Open(ctx context.Context, cfg ConnectionConfig) (*Client, error) {
	sfCfg, err := cfg.driverConfig()
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(sf.NewConnector(sf.SnowflakeDriver{}, *sfCfg))
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to connect to %s as %s", cfg.Account, cfg.User)
	}

	slog.Debug("Connected to Snowflake",
		"account", cfg.Account,
		"user", cfg.User,
		"role", cfg.Role,
		"warehouse", cfg.Warehouse,
		"database", cfg.Database,
	)

	return &Client{db: db, conn: conn, database: cfg.Database}, nil
}

// Database returns the database the session was opened against.
func (c *Client) Database() string { return c.database }

// Exec runs a single statement.
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	return exec(ctx, c.conn, query, args...)
}

// ExecScript runs every statement in script.
func (c *Client) ExecScript(ctx context.Context, script string) error {
	return execScript(ctx, c.conn, script)
}

// QueryRow runs a query expected to return at most one row.
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

// Begin starts a transaction on the session.
func (c *Client) Begin(ctx context.Context) (Tx, error) {
	t, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}

	return &tx{tx: t}, nil
}

// WarehouseSize returns the current size of the named warehouse as reported
// by SHOW WAREHOUSES, e.g. "X-Small".
func (c *Client) WarehouseSize(ctx context.Context, name string) (string, error) {
	query := utils.NewSQLBuilder().Raw("SHOW WAREHOUSES LIKE").Raw(utils.QuoteLiteral(name)).String()

	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return "", errors.Wrapf(err, "failed to describe warehouse %s", name)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return "", errors.Wrap(err, "failed to read warehouse columns")
	}

	nameIdx, sizeIdx := -1, -1
	for i, col := range cols {
		switch strings.ToLower(col) {
		case "name":
			nameIdx = i
		case "size":
			sizeIdx = i
		}
	}

	if nameIdx < 0 || sizeIdx < 0 {
		return "", errors.New("SHOW WAREHOUSES returned no name or size column")
	}

	values := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return "", errors.Wrap(err, "failed to scan warehouse")
		}

		if strings.EqualFold(text(values[nameIdx]), name) {
			return text(values[sizeIdx]), nil
		}
	}

	if err := rows.Err(); err != nil {
		return "", errors.Wrap(err, "failed to read warehouses")
	}

	return "", errors.Errorf("warehouse not found: %s", name)
}

// ResizeWarehouse sets the named warehouse's size.
func (c *Client) ResizeWarehouse(ctx context.Context, name, size string) error {
	canonical, err := NormalizeSize(size)
	if err != nil {
		return err
	}

	stmt := utils.NewSQLBuilder().Alter("WAREHOUSE").Name(name).Set("WAREHOUSE_SIZE", canonical).String()
	return errors.Wrapf(c.Exec(ctx, stmt), "failed to resize warehouse %s to %s", name, canonical)
}

// Close ends the session.
func (c *Client) Close() error {
	connErr := c.conn.Close()
	if err := c.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close connection pool")
	}

	return errors.Wrap(connErr, "failed to close session")
}

func (t *tx) Exec(ctx context.Context, query string, args ...any) error {
	return exec(ctx, t.tx, query, args...)
}

func (t *tx) ExecScript(ctx context.Context, script string) error {
	return execScript(ctx, t.tx, script)
}

func (t *tx) Commit() error {
	return errors.Wrap(t.tx.Commit(), "failed to commit transaction")
}

func (t *tx) Rollback() error {
	return errors.Wrap(t.tx.Rollback(), "failed to roll back transaction")
}

type execContext interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func exec(ctx context.Context, e execContext, query string, args ...any) error {
	_, err := e.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "failed to execute statement")
}

func execScript(ctx context.Context, e execContext, script string) error {
	// 0 lets the driver accept any number of statements
	multi, err := sf.WithMultiStatement(ctx, 0)
	if err != nil {
		return errors.Wrap(err, "failed to enable multi statement execution")
	}

	_, err = e.ExecContext(multi, script)
	return errors.Wrap(err, "failed to execute script")
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
