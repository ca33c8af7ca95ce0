// Package sqlstore implements storage.Repository over database/sql for
// SQLite (mattn/go-sqlite3) and PostgreSQL (pgx stdlib driver).
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"canvas-gateway/internal/common/errors"
	"canvas-gateway/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lucsky/cuid"
	_ "github.com/mattn/go-sqlite3"
)

type Adapter struct {
	db      *sql.DB
	dialect dialect
	sealer  storage.Sealer
}

// OpenSQLite opens (and migrates) a SQLite repository.
func OpenSQLite(config SQLiteConfig, sealer storage.Sealer) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid SQLite config: %w", err)
	}

	db, err := sql.Open(sqliteDialect.driver, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection: keeps ":memory:" databases and the foreign_keys pragma stable
	db.SetMaxOpenConns(1)

	return newAdapter(db, sqliteDialect, sealer)
}

// OpenPostgres opens (and migrates) a PostgreSQL repository.
func OpenPostgres(config PostgresConfig, sealer storage.Sealer) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL config: %w", err)
	}

	connConfig, err := pgx.ParseConfig(config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL connection string: %w", err)
	}

	return newAdapter(stdlib.OpenDB(*connConfig), postgresDialect, sealer)
}

func newAdapter(db *sql.DB, d dialect, sealer storage.Sealer) (*Adapter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to ping database", err)
	}

	a := &Adapter{db: db, dialect: d, sealer: sealer}
	if err := a.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return a, nil
}

func (a *Adapter) migrate(ctx context.Context) error {
	for _, stmt := range a.dialect.schema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *Adapter) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) CreateUser(ctx context.Context, user *storage.User) error {
	if user.ID == "" {
		user.ID = cuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := a.db.ExecContext(ctx, a.dialect.rebind(
		`INSERT INTO users (id, display_name, created_at) VALUES (?, ?, ?)`),
		user.ID, user.DisplayName, user.CreatedAt)
	if err != nil {
		return errors.InternalError("failed to create user", err)
	}
	return nil
}

func (a *Adapter) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	var user storage.User
	err := a.db.QueryRowContext(ctx, a.dialect.rebind(
		`SELECT id, display_name, created_at FROM users WHERE id = ?`), userID).
		Scan(&user.ID, &user.DisplayName, &user.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError("user")
	}
	if err != nil {
		return nil, errors.InternalError("failed to get user", err)
	}
	return &user, nil
}

func (a *Adapter) FindUserIDsConnectedTo(ctx context.Context, providerID, providerUserID string) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, a.dialect.rebind(
		`SELECT user_id FROM connections
		 WHERE provider_id = ? AND provider_user_id = ?
		 ORDER BY created_at, user_id`), providerID, providerUserID)
	if err != nil {
		return nil, errors.InternalError("failed to query connections", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.InternalError("failed to scan connection", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalError("failed to iterate connections", err)
	}
	return userIDs, nil
}

func (a *Adapter) SaveConnection(ctx context.Context, conn *storage.Connection) error {
	now := time.Now().UTC()
	if conn.ID == "" {
		conn.ID = cuid.New()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	token, err := a.seal(conn.AccessToken)
	if err != nil {
		return err
	}

	var expiresAt sql.NullTime
	if conn.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: conn.ExpiresAt.UTC(), Valid: true}
	}

	_, err = a.db.ExecContext(ctx, a.dialect.rebind(
		`INSERT INTO connections
			(id, user_id, provider_id, provider_user_id, access_token, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider_id, provider_user_id) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`),
		conn.ID, conn.UserID, conn.ProviderID, conn.ProviderUserID, token, expiresAt, conn.CreatedAt, conn.UpdatedAt)
	if err != nil {
		return errors.InternalError("failed to save connection", err).
			WithContext("provider", conn.ProviderID)
	}
	return nil
}

func (a *Adapter) GetConnection(ctx context.Context, userID, providerID, providerUserID string) (*storage.Connection, error) {
	var (
		conn      storage.Connection
		token     string
		expiresAt sql.NullTime
	)

	err := a.db.QueryRowContext(ctx, a.dialect.rebind(
		`SELECT id, user_id, provider_id, provider_user_id, access_token, expires_at, created_at, updated_at
		 FROM connections
		 WHERE user_id = ? AND provider_id = ? AND provider_user_id = ?`),
		userID, providerID, providerUserID).
		Scan(&conn.ID, &conn.UserID, &conn.ProviderID, &conn.ProviderUserID, &token, &expiresAt, &conn.CreatedAt, &conn.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFoundError("connection")
	}
	if err != nil {
		return nil, errors.InternalError("failed to get connection", err)
	}

	if conn.AccessToken, err = a.open(token); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		conn.ExpiresAt = &t
	}
	return &conn, nil
}

func (a *Adapter) RemoveConnection(ctx context.Context, userID, providerID, providerUserID string) error {
	_, err := a.db.ExecContext(ctx, a.dialect.rebind(
		`DELETE FROM connections WHERE user_id = ? AND provider_id = ? AND provider_user_id = ?`),
		userID, providerID, providerUserID)
	if err != nil {
		return errors.InternalError("failed to remove connection", err).
			WithContext("user_id", userID)
	}
	return nil
}

func (a *Adapter) ClearExpiredTokens(ctx context.Context, before time.Time) (int, error) {
	res, err := a.db.ExecContext(ctx, a.dialect.rebind(
		`UPDATE connections SET access_token = '', expires_at = NULL, updated_at = ?
		 WHERE expires_at IS NOT NULL AND expires_at <= ?`),
		time.Now().UTC(), before.UTC())
	if err != nil {
		return 0, errors.InternalError("failed to clear expired tokens", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.InternalError("failed to count cleared tokens", err)
	}
	return int(n), nil
}

func (a *Adapter) seal(token string) (string, error) {
	if a.sealer == nil {
		return token, nil
	}
	sealed, err := a.sealer.Seal(token)
	if err != nil {
		return "", errors.InternalError("failed to seal access token", err)
	}
	return sealed, nil
}

func (a *Adapter) open(token string) (string, error) {
	if a.sealer == nil {
		return token, nil
	}
	plain, err := a.sealer.Open(token)
	if err != nil {
		return "", errors.InternalError("failed to open access token", err)
	}
	return plain, nil
}
