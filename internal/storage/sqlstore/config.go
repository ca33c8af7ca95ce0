package sqlstore

import (
	"fmt"
	"net/url"
)

// SQLiteConfig opens a SQLite database file. ":memory:" is accepted.
type SQLiteConfig struct {
	Path string
}

func (c SQLiteConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("database path is required")
	}
	return nil
}

func (c SQLiteConfig) GetType() string {
	return "sqlite"
}

// PostgresConfig reaches a PostgreSQL server through pgx.
type PostgresConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
}

func (c PostgresConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("PostgreSQL host is required")
	}
	if c.Database == "" {
		return fmt.Errorf("PostgreSQL database name is required")
	}
	if c.Username == "" {
		return fmt.Errorf("PostgreSQL username is required")
	}
	return nil
}

func (c PostgresConfig) GetType() string {
	return "postgres"
}

// ConnectionString builds a postgres:// URL for pgx.
func (c PostgresConfig) ConnectionString() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + port,
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}
