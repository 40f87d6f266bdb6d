// ABOUTME: AccountStore implementation on the users table
// ABOUTME: Registration, authentication, contact listing, and profile photos

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Register creates a new account with no photo.
// Returns ErrInvalidInput for a blank username or password and
// ErrDuplicateUsername if the username is taken.
func (s *SQLiteStore) Register(ctx context.Context, username, password string) (*Account, error) {
	if isBlank(username) || isBlank(password) {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	encoded, err := s.credentials.Encode(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("beginning registration", err)
	}
	defer s.rollback(tx)

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&existing)
	if err == nil {
		return nil, ErrDuplicateUsername
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, unavailable("checking username", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, password, photo) VALUES (?, ?, NULL)`,
		username, encoded,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, unavailable("inserting user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, unavailable("reading user id", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("committing registration", err)
	}

	s.logger.Info("registered account", "id", id, "username", username)
	return &Account{ID: id, Username: username}, nil
}

// Authenticate returns the account whose username and password both match.
// Any mismatch yields ErrInvalidCredentials.
func (s *SQLiteStore) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, err := s.queryAccount(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.credentials.Verify(account.Password, password) {
		s.logger.Debug("authentication failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	account.Password = ""
	return account, nil
}

// ListOthers returns every account except excludingUsername.
func (s *SQLiteStore) ListOthers(ctx context.Context, excludingUsername string, order AccountOrder) ([]*Account, error) {
	orderBy := "id ASC"
	if order == OrderByUsername {
		orderBy = "username ASC, id ASC"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, photo FROM users WHERE username != ? ORDER BY `+orderBy,
		excludingUsername,
	)
	if err != nil {
		return nil, unavailable("listing users", err)
	}
	defer rows.Close()

	accounts := []*Account{}
	for rows.Next() {
		var a Account
		var photo sql.NullString
		if err := rows.Scan(&a.ID, &a.Username, &photo); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		// The filter is part of the contract, not just the query.
		if a.Username == excludingUsername {
			continue
		}
		a.Photo = stringPtr(photo)
		accounts = append(accounts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterating users", err)
	}

	return accounts, nil
}

// GetAccount returns the account for username, or ErrNotFound.
func (s *SQLiteStore) GetAccount(ctx context.Context, username string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, err := s.queryAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	account.Password = ""
	return account, nil
}

// GetPhoto returns the profile photo URI for username, nil if none is set.
func (s *SQLiteStore) GetPhoto(ctx context.Context, username string) (*string, error) {
	account, err := s.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	return account.Photo, nil
}

// UpdatePhoto overwrites the profile photo of username.
func (s *SQLiteStore) UpdatePhoto(ctx context.Context, username, uri string) (*Account, error) {
	if isBlank(uri) {
		return nil, fmt.Errorf("%w: photo uri is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE users SET photo = ? WHERE username = ?`, uri, username)
	if err != nil {
		return nil, unavailable("updating photo", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("checking rows affected", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}

	account, err := s.queryAccount(ctx, username)
	if err != nil {
		return nil, err
	}
	account.Password = ""

	s.logger.Info("updated photo", "username", username)
	return account, nil
}

// queryAccount loads a full row including the stored credential.
// Callers must hold mu.
func (s *SQLiteStore) queryAccount(ctx context.Context, username string) (*Account, error) {
	var a Account
	var photo sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password, photo FROM users WHERE username = ?`,
		username,
	).Scan(&a.ID, &a.Username, &a.Password, &photo)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
	}
	if err != nil {
		return nil, unavailable("querying user", err)
	}

	a.Photo = stringPtr(photo)
	return &a, nil
}

// accountExists reports whether username is registered, within tx.
func accountExists(ctx context.Context, tx *sql.Tx, username string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username = ?`, username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("checking user", err)
	}
	return true, nil
}
