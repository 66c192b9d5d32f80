package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type OTPRepo struct {
	db *DB
}

func NewOTPRepository(db *DB) *OTPRepo {
	return &OTPRepo{db: db}
}

func (r *OTPRepo) Create(ctx context.Context, code *OTPCode) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_codes (phone, purpose, code_hash, attempts, expires_at, created_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, code.Phone, code.Purpose, code.CodeHash, toUnix(code.ExpiresAt), toUnix(code.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create otp code: %w", err)
	}

	code.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get otp code id: %w", err)
	}

	return nil
}

// Latest returns the most recently issued code for phone and purpose.
func (r *OTPRepo) Latest(ctx context.Context, phone, purpose string) (*OTPCode, error) {
	var code OTPCode
	var expiresAt, createdAt int64
	var usedAt sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT id, phone, purpose, code_hash, attempts, expires_at, used_at, created_at
		FROM otp_codes
		WHERE phone = ? AND purpose = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, phone, purpose).Scan(&code.ID, &code.Phone, &code.Purpose, &code.CodeHash, &code.Attempts,
		&expiresAt, &usedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest otp code: %w", err)
	}

	code.ExpiresAt = fromUnix(expiresAt)
	code.CreatedAt = fromUnix(createdAt)
	code.UsedAt = fromNullUnix(usedAt)

	return &code, nil
}

func (r *OTPRepo) IncrementAttempts(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE otp_codes SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return nil
}

func (r *OTPRepo) MarkUsed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE otp_codes SET used_at = ? WHERE id = ?`, toUnix(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark otp code used: %w", err)
	}
	return nil
}

func (r *OTPRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_codes WHERE expires_at < ?`, toUnix(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otp codes: %w", err)
	}
	return res.RowsAffected()
}
