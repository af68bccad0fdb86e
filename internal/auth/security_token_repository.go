package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// SQLiteSecurityTokenRepository implements SecurityTokenStore using SQLite.
// Only the SHA-256 hash of each token value is stored.
type SQLiteSecurityTokenRepository struct {
	db *sql.DB
}

// NewSecurityTokenRepository creates a new SQLite-backed security token store.
func NewSecurityTokenRepository(db *sql.DB) *SQLiteSecurityTokenRepository {
	return &SQLiteSecurityTokenRepository{db: db}
}

// HashToken computes the SHA-256 hash of a raw token value for storage.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Save inserts a token or updates the mutable fields of an existing one.
// The used flag only moves from false to true.
func (r *SQLiteSecurityTokenRepository) Save(ctx context.Context, token *SecurityToken) error {
	if token.ID == "" || token.Value == "" {
		return fmt.Errorf("saving security token: id and value are required")
	}
	if !token.Type.IsValid() {
		return fmt.Errorf("saving security token: unknown type %q", token.Type)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO security_tokens (id, owner_id, token_type, value_hash, created_at, expires_at, used)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET used = MAX(security_tokens.used, excluded.used), expires_at = excluded.expires_at`,
		token.ID, token.OwnerID, string(token.Type), HashToken(token.Value),
		token.CreatedAt.UTC().Format(time.RFC3339),
		token.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(token.Used),
	)
	if err != nil {
		return fmt.Errorf("saving security token: %w", err)
	}
	return nil
}

// FindByValue looks up a token by the hash of its presented value.
func (r *SQLiteSecurityTokenRepository) FindByValue(ctx context.Context, value string) (*SecurityToken, error) {
	var t SecurityToken
	var tokenType, createdAt, expiresAt string
	var used int

	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, token_type, created_at, expires_at, used
		 FROM security_tokens WHERE value_hash = ?`, HashToken(value),
	).Scan(&t.ID, &t.OwnerID, &tokenType, &createdAt, &expiresAt, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("finding security token: %w", err)
	}

	t.Type = TokenType(tokenType)
	t.Value = value
	t.Used = used != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled

	return &t, nil
}

// MarkUsed sets used = 1 only where it is still 0. Concurrent callers race
// on the row and exactly one sees an affected row.
func (r *SQLiteSecurityTokenRepository) MarkUsed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE security_tokens SET used = 1 WHERE id = ? AND used = 0", id)
	if err != nil {
		return fmt.Errorf("marking security token used: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 1 {
		return nil
	}

	var exists int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM security_tokens WHERE id = ?", id).Scan(&exists); err != nil {
		return fmt.Errorf("checking security token: %w", err)
	}
	if exists == 0 {
		return ErrTokenNotFound
	}
	return ErrTokenAlreadyUsed
}

// DeleteForOwner removes every token of the given type belonging to ownerID.
// Issuing a fresh password reset token invalidates the outstanding ones.
func (r *SQLiteSecurityTokenRepository) DeleteForOwner(ctx context.Context, ownerID string, typ TokenType) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM security_tokens WHERE owner_id = ? AND token_type = ? AND used = 0",
		ownerID, string(typ))
	if err != nil {
		return 0, fmt.Errorf("deleting security tokens: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}
