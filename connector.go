package pgsql

import (
	"context"
	"database/sql/driver"
)

// Connector implements driver.Connector for efficient connection pooling
type Connector struct {
	dsn    string
	driver *Driver

	// Options applied to every connection, after ConfigFiles
	Options []Option

	// ConfigFiles are TOML files read with LoadOptions on each Connect
	ConfigFiles []string
}

// ConnectorOption configures a Connector
type ConnectorOption func(*Connector)

// WithConnOptions adds session options applied to every connection
func WithConnOptions(opts ...Option) ConnectorOption {
	return func(c *Connector) {
		c.Options = append(c.Options, opts...)
	}
}

// WithConfigFiles reads session options from TOML files on Connect
func WithConfigFiles(files ...string) ConnectorOption {
	return func(c *Connector) {
		c.ConfigFiles = append(c.ConfigFiles, files...)
	}
}

// NewConnector returns a Connector for sql.OpenDB.
func NewConnector(dsn string, opts ...ConnectorOption) (*Connector, error) {
	if err := initLibpq(); err != nil {
		return nil, err
	}
	c := &Connector{dsn: dsn, driver: &Driver{}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect establishes a new connection to the database
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	opts, err := c.sessionOptions()
	if err != nil {
		return nil, err
	}
	return Connect(ctx, c.dsn, opts...)
}

// sessionOptions starts database/sql connections without portability
// rewriting so scanned values match the server's; config files and
// Options may turn it back on.
func (c *Connector) sessionOptions() ([]Option, error) {
	opts := []Option{WithPortability(PortabilityNone)}
	if len(c.ConfigFiles) > 0 {
		loaded, err := LoadOptionsInto(NewOptions(opts...), c.ConfigFiles...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithOptions(loaded))
	}
	return append(opts, c.Options...), nil
}

// Driver returns the underlying Driver
func (c *Connector) Driver() driver.Driver {
	return c.driver
}

// Ensure Connector implements driver.Connector
var _ driver.Connector = (*Connector)(nil)
