package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ErrTokenInvalid is returned for refresh tokens that are unknown, revoked
// or expired.  It wraps ErrNotFound.
var ErrTokenInvalid = fmt.Errorf("%w: refresh token", ErrNotFound)

// TokenRepo stores SHA-256 hashes of refresh tokens, never the raw value.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp)
	return err
}

// lockLive locks the row for tokenHash and returns its owner when the
// token may still be used.
func lockLive(ctx context.Context, tx *sql.Tx, tokenHash string) (uint64, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if err == sql.ErrNoRows || (err == nil && (revokedAt.Valid || time.Now().UTC().After(expiresAt))) {
		return 0, ErrTokenInvalid
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// Revoke marks one live token as revoked and returns its owner.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	userID, err := lockLive(ctx, tx, tokenHash)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=?", tokenHash); err != nil {
		return 0, err
	}
	return userID, tx.Commit()
}

// RevokeAllForUser revokes every active token of a user.  Blocking an
// account calls it so existing sessions cannot be refreshed.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// Rotate swaps oldHash for newHash in one transaction and returns the
// owning user id.  A token can be rotated only once.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash, newHash string, exp time.Time) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	userID, err := lockLive(ctx, tx, oldHash)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_hash=?", oldHash); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, newHash, exp); err != nil {
		return 0, err
	}
	return userID, tx.Commit()
}
