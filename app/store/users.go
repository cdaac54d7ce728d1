package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
)

// UpsertUser creates the user row on first sight and refreshes the login
// time and profile fields afterwards.
func (s *Store) UpsertUser(ctx context.Context, u models.User) error {
	if u.LastLogin.IsZero() {
		u.LastLogin = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, last_login)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = excluded.email, name = excluded.name, last_login = excluded.last_login;
	`, u.ID, u.Email, u.Name, toMillis(u.LastLogin))
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var (
		u         models.User
		lastLogin int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, last_login
		FROM users
		WHERE id = $1;
	`, id).Scan(&u.ID, &u.Email, &u.Name, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	u.LastLogin = fromMillis(lastLogin)
	return u, nil
}
