package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type UserRepo struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), password_hash, role, phone_verified, created_at, updated_at`

func scanUser(s scanner) (*User, error) {
	var u User
	var createdAt, updatedAt int64
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.PhoneVerified, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (name, email, phone, password_hash, role, phone_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.Name, nullString(user.Email), nullString(user.Phone), user.PasswordHash, user.Role,
		user.PhoneVerified, toUnix(now), toUnix(now))
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}
	user.CreatedAt = fromUnix(toUnix(now))
	user.UpdatedAt = user.CreatedAt

	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getOne(ctx, "phone = ?", phone)
}

// GetByIdentifier looks a user up by email or phone.
func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? OR phone = ? LIMIT 1`, identifier, identifier))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by identifier: %w", err)
	}
	return user, nil
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, total, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id int64, role string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`,
		role, toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", mapError(err))
	}
	return nil
}

func (r *UserRepo) MarkPhoneVerified(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET phone_verified = 1, updated_at = ? WHERE id = ?`,
		toUnix(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark phone verified: %w", err)
	}
	return nil
}

func (r *UserRepo) CountByRole(ctx context.Context, role string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users by role: %w", err)
	}
	return count, nil
}
