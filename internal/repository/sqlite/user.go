package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/postvault/internal/apperror"
	"github.com/sakif/postvault/internal/model"
	"github.com/sakif/postvault/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, img, auth_type, status, github_id, created_at, updated_at`

// CreateUser inserts a new user, filling in ID and timestamps.
// A taken email or username is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := db.stamp()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Img,
		user.AuthType, user.Status, user.GitHubID,
		micros(user.CreatedAt), micros(user.UpdatedAt),
	)
	if err != nil {
		if c := conflictFor(err); c != nil {
			return c
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user has that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by (lower-cased) email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpsertGitHubUser signs in a GitHub account.
//
// Resolution order:
//  1. a user already linked to this github_id: refresh the avatar if they
//     have none, and return them
//  2. a user with the same email: link the GitHub id to that account and
//     activate it (GitHub has verified the address)
//  3. otherwise insert a new active github user
//
// On return user holds the stored row. The lookup and the write run in one
// transaction so two concurrent first logins cannot both insert.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upserting GitHub user: missing github id")
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := db.stamp()

		existing, err := scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE github_id = ?`, *user.GitHubID))
		if err == nil {
			if existing.Img == "" && user.Img != "" {
				existing.Img = user.Img
				existing.UpdatedAt = now
				if _, err := tx.ExecContext(ctx,
					`UPDATE users SET img = ?, updated_at = ? WHERE id = ?`,
					existing.Img, micros(now), existing.ID); err != nil {
					return fmt.Errorf("sqlite: refreshing GitHub user %s: %w", existing.ID, err)
				}
			}
			*user = *existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: looking up github_id %d: %w", *user.GitHubID, err)
		}

		existing, err = scanUser(tx.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = ?`, user.Email))
		if err == nil {
			existing.GitHubID = user.GitHubID
			existing.Status = model.UserActive
			if existing.Img == "" {
				existing.Img = user.Img
			}
			existing.UpdatedAt = now
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET github_id = ?, status = ?, img = ?, updated_at = ? WHERE id = ?`,
				*existing.GitHubID, existing.Status, existing.Img, micros(now), existing.ID); err != nil {
				return fmt.Errorf("sqlite: linking GitHub account to %s: %w", existing.ID, err)
			}
			*user = *existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlite: looking up email for GitHub login: %w", err)
		}

		user.ID = xid.New().String()
		user.AuthType = model.AuthGitHub
		user.Status = model.UserActive
		user.CreatedAt = now
		user.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Username, user.Email, "", user.Img,
			user.AuthType, user.Status, *user.GitHubID,
			micros(now), micros(now),
		)
		if err != nil {
			if c := conflictFor(err); c != nil {
				return c
			}
			return fmt.Errorf("sqlite: inserting GitHub user %d: %w", *user.GitHubID, err)
		}
		return nil
	})
}

// UpdateUser writes the mutable fields (username, img, status,
// password_hash) and bumps updated_at.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = db.stamp()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET username = ?, img = ?, status = ?, password_hash = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username, user.Img, user.Status, user.PasswordHash, micros(user.UpdatedAt), user.ID,
	)
	if err != nil {
		if c := conflictFor(err); c != nil {
			return c
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u         model.User
		githubID  sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Img,
		&u.AuthType, &u.Status, &githubID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	u.CreatedAt = fromMicros(createdAt)
	u.UpdatedAt = fromMicros(updatedAt)
	return &u, nil
}
