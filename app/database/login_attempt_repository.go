package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type LoginAttemptRepo struct {
	db *DB
}

func NewLoginAttemptRepository(db *DB) *LoginAttemptRepo {
	return &LoginAttemptRepo{db: db}
}

func (r *LoginAttemptRepo) Insert(ctx context.Context, attempt *LoginAttempt) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO login_attempts (identifier, ip_address, success, blocked, blocked_until, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, attempt.Identifier, attempt.IPAddress, attempt.Success, attempt.Blocked,
		nullUnix(attempt.BlockedUntil), toUnix(attempt.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}

	attempt.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get login attempt id: %w", err)
	}

	return nil
}

// ActiveBlock returns the latest block for identifier still in force at now.
func (r *LoginAttemptRepo) ActiveBlock(ctx context.Context, identifier string, now time.Time) (*time.Time, error) {
	var until int64
	err := r.db.QueryRowContext(ctx, `
		SELECT blocked_until FROM login_attempts
		WHERE identifier = ? AND blocked = 1 AND blocked_until > ?
		ORDER BY blocked_until DESC
		LIMIT 1
	`, identifier, toUnix(now)).Scan(&until)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active block: %w", err)
	}

	t := fromUnix(until)
	return &t, nil
}

// LastResetID returns the id of the latest successful or blocking attempt
// for identifier, or 0 when there is none. Failures up to that row no longer
// count towards a block.
func (r *LoginAttemptRepo) LastResetID(ctx context.Context, identifier string) (int64, error) {
	var id sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
		SELECT MAX(id) FROM login_attempts
		WHERE identifier = ? AND (success = 1 OR blocked = 1)
	`, identifier).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get last login reset: %w", err)
	}
	return id.Int64, nil
}

// CountFailures counts failed attempts made at or after since with an id
// greater than afterID.
func (r *LoginAttemptRepo) CountFailures(ctx context.Context, identifier string, since time.Time, afterID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE identifier = ? AND success = 0 AND created_at >= ? AND id > ?
	`, identifier, toUnix(since), afterID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count failed logins: %w", err)
	}
	return count, nil
}

func (r *LoginAttemptRepo) Block(ctx context.Context, id int64, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE login_attempts SET blocked = 1, blocked_until = ? WHERE id = ?
	`, toUnix(until), id)
	if err != nil {
		return fmt.Errorf("failed to block login attempt: %w", err)
	}
	return nil
}

// DeleteOlderThan removes attempts created before the cutoff whose block has expired.
func (r *LoginAttemptRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	cutoff := toUnix(before)
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM login_attempts
		WHERE created_at < ? AND (blocked_until IS NULL OR blocked_until < ?)
	`, cutoff, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old login attempts: %w", err)
	}
	return res.RowsAffected()
}
