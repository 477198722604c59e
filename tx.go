package pgsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
)

// Tx implements driver.Tx for transaction support
type Tx struct {
	conn *Conn
}

// beginSQL renders the BEGIN statement for opts.
func beginSQL(opts driver.TxOptions) (string, error) {
	query := "BEGIN"
	switch sql.IsolationLevel(opts.Isolation) {
	case sql.LevelDefault:
	case sql.LevelReadUncommitted:
		query += " ISOLATION LEVEL READ UNCOMMITTED"
	case sql.LevelReadCommitted:
		query += " ISOLATION LEVEL READ COMMITTED"
	case sql.LevelRepeatableRead, sql.LevelSnapshot:
		query += " ISOLATION LEVEL REPEATABLE READ"
	case sql.LevelSerializable, sql.LevelLinearizable:
		query += " ISOLATION LEVEL SERIALIZABLE"
	default:
		return "", newError(KindUnsupported, "begin", "unsupported isolation level: "+sql.IsolationLevel(opts.Isolation).String())
	}
	if opts.ReadOnly {
		query += " READ ONLY"
	}
	return query, nil
}

// BeginTx starts a new transaction with context and options
func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if c.isClosed() {
		return nil, driver.ErrBadConn
	}
	c.mu.Lock()
	inTx := c.inTx
	c.mu.Unlock()
	if inTx {
		return nil, errors.New("already in a transaction")
	}

	query, err := beginSQL(opts)
	if err != nil {
		return nil, err
	}
	if _, err := c.Exec(ctx, query); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.inTx = true
	c.mu.Unlock()
	return &Tx{conn: c}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.end("COMMIT")
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.end("ROLLBACK")
}

func (t *Tx) end(query string) error {
	t.conn.mu.Lock()
	if !t.conn.inTx {
		t.conn.mu.Unlock()
		return nil // Already committed or rolled back
	}
	t.conn.inTx = false
	t.conn.mu.Unlock()

	_, err := t.conn.Exec(context.Background(), query)
	return err
}

// Ensure Tx implements driver.Tx
var _ driver.Tx = (*Tx)(nil)
