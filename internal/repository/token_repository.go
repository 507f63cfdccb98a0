package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists the single active refresh token of each user. Only
// the SHA‑256 hash is stored, on the users row itself, so issuing a new
// token overwrites (and thereby revokes) the previous one.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh overwrites the user's refresh token hash and expiry.
func (r *TokenRepo) StoreRefresh(ctx context.Context, mail, tokenHash string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=?, refresh_expires_at=? WHERE mail=?",
		tokenHash, exp.UTC(), NormalizeMail(mail))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RotateRefresh replaces oldHash by newHash only if oldHash is still the
// stored value and has not expired. Two concurrent rotations of the same
// token cannot both succeed: the loser gets ErrStaleRefreshToken.
func (r *TokenRepo) RotateRefresh(ctx context.Context, mail, oldHash, newHash string, exp time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash=?, refresh_expires_at=?
		 WHERE mail=? AND refresh_token_hash=? AND refresh_expires_at > ?`,
		newHash, exp.UTC(), NormalizeMail(mail), oldHash, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleRefreshToken
	}
	return nil
}

// ClearRefresh removes the user's refresh token. Clearing an already
// empty token succeeds.
func (r *TokenRepo) ClearRefresh(ctx context.Context, mail string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET refresh_token_hash=NULL, refresh_expires_at=NULL WHERE mail=?",
		NormalizeMail(mail))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ExpiredRefreshOwners returns up to limit user ids whose refresh token
// expired before now.
func (r *TokenRepo) ExpiredRefreshOwners(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id FROM users WHERE refresh_expires_at IS NOT NULL AND refresh_expires_at < ? ORDER BY id LIMIT ?",
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearExpiredRefresh clears one user's refresh token if it is still
// expired. A token rotated in the meantime is left alone.
func (r *TokenRepo) ClearExpiredRefresh(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET refresh_token_hash=NULL, refresh_expires_at=NULL
		 WHERE id=? AND refresh_expires_at < ?`,
		userID, now.UTC())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
