// Package database talks to one PostgreSQL instance at a time: a
// connectivity check and the role management statements behind credential
// rotation. Connections are opened right before use and closed right after.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ConnInfo carries everything needed to connect to an instance.
type ConnInfo struct {
	Host     string
	Port     int32
	Database string
	User     string
	Password string

	// SSLMode defaults to require, which is what managed instances expect.
	SSLMode string
}

func (c ConnInfo) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", c.Port),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("user=%s", c.User),
	}
	if c.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", c.Password))
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode))

	return strings.Join(parts, " ")
}

// Conn is a connection to one instance's logical database.
type Conn struct {
	db       *sql.DB
	database string
}

// Connect opens a connection and verifies it with a ping. On ping failure
// the handle is closed before the error is returned.
func Connect(ctx context.Context, info ConnInfo) (*Conn, error) {
	db, err := sql.Open("postgres", info.dsn())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s as %s: %w", info.Database, info.User, err)
	}

	return NewConn(db, info.Database), nil
}

// NewConn wraps an already-open handle. Connect is the normal entry point;
// this exists so tests can substitute a mocked *sql.DB.
func NewConn(db *sql.DB, database string) *Conn {
	return &Conn{db: db, database: database}
}

// Close releases the connection.
func (c *Conn) Close() error {
	return c.db.Close()
}

// RoleExists checks the role catalog for an exact role name. Used purely as
// a boolean gate.
func (c *Conn) RoleExists(ctx context.Context, role string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, "SELECT 1 FROM pg_roles WHERE rolname = $1", role).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query role catalog for %s: %w", role, err)
	}
	return true, nil
}

// CreateRole creates a login role with the given password. DDL cannot take
// bind parameters, so identifier and literal are quoted explicitly.
func (c *Conn) CreateRole(ctx context.Context, role, password string) error {
	stmt := fmt.Sprintf("CREATE USER %s WITH ENCRYPTED PASSWORD %s",
		pq.QuoteIdentifier(role), pq.QuoteLiteral(password))
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create role %s: %w", role, err)
	}
	return nil
}

// AlterRolePassword replaces an existing role's password.
func (c *Conn) AlterRolePassword(ctx context.Context, role, password string) error {
	stmt := fmt.Sprintf("ALTER USER %s WITH ENCRYPTED PASSWORD %s",
		pq.QuoteIdentifier(role), pq.QuoteLiteral(password))
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to update password for role %s: %w", role, err)
	}
	return nil
}

// GrantDatabase grants the role full privileges on the connection's logical
// database.
func (c *Conn) GrantDatabase(ctx context.Context, role string) error {
	stmt := fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s",
		pq.QuoteIdentifier(c.database), pq.QuoteIdentifier(role))
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to grant privileges on %s to %s: %w", c.database, role, err)
	}
	return nil
}
