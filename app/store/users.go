package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/postbureau/dispatch/app/store/enums"
)

// User is an account with a role and optional sub-client restrictions.
// PasswordHash is bcrypt and never serialized to JSON.
type User struct {
	ID                string           `json:"id"`
	Email             string           `json:"email"`
	Name              string           `json:"name,omitempty"`
	Role              enums.Role       `json:"role"`
	Status            enums.UserStatus `json:"status"`
	PasswordHash      string           `json:"-"`
	AllowedSubClients StringList       `json:"allowed_sub_clients,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	LoginHistory      []LoginEvent     `json:"login_history,omitempty"`
}

// LoginEvent is a single successful login record
type LoginEvent struct {
	At         time.Time `json:"at"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

type userRow struct {
	ID                string           `db:"id"`
	Email             string           `db:"email"`
	Name              string           `db:"name"`
	Role              enums.Role       `db:"role"`
	Status            enums.UserStatus `db:"status"`
	PasswordHash      string           `db:"password_hash"`
	AllowedSubClients StringList       `db:"allowed_sub_clients"`
	CreatedAt         int64            `db:"created_at"`
}

func (r userRow) toUser() User {
	return User{
		ID:                r.ID,
		Email:             r.Email,
		Name:              r.Name,
		Role:              r.Role,
		Status:            r.Status,
		PasswordHash:      r.PasswordHash,
		AllowedSubClients: r.AllowedSubClients,
		CreatedAt:         timeOrZero(r.CreatedAt),
	}
}

const userColumns = "id, email, name, role, status, password_hash, allowed_sub_clients, created_at"

// ListUsers returns all users ordered by email
func (s *Store) ListUsers() ([]User, error) {
	var rows []userRow
	if err := s.db.Select(&rows, "SELECT "+userColumns+" FROM users ORDER BY email"); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

// GetUser returns a user by id
func (s *Store) GetUser(id string) (User, error) {
	var row userRow
	err := s.db.Get(&row, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	return row.toUser(), nil
}

// GetUserByEmail returns a user by email, case-insensitive
func (s *Store) GetUserByEmail(email string) (User, error) {
	var row userRow
	err := s.db.Get(&row, "SELECT "+userColumns+" FROM users WHERE email = ? COLLATE NOCASE", email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user by email: %w", err)
	}
	return row.toUser(), nil
}

// AddUser creates an account with a bcrypt hash of the given password
func (s *Store) AddUser(user User, password string) (User, error) {
	if strings.TrimSpace(user.Email) == "" {
		return User{}, fmt.Errorf("user email is required")
	}
	if password == "" {
		return User{}, fmt.Errorf("user password is required")
	}
	if _, err := enums.ParseRole(user.Role.String()); err != nil {
		return User{}, err
	}
	if user.Status == "" {
		user.Status = enums.UserStatusActive
	}
	if _, err := enums.ParseUserStatus(user.Status.String()); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()

	_, err = s.db.Exec("INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		user.ID, user.Email, user.Name, user.Role, user.Status, user.PasswordHash,
		user.AllowedSubClients, user.CreatedAt.Unix())
	if err != nil {
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// UpdateUser replaces mutable account fields, password stays unless newPassword
// is non-empty. Returns ErrNotFound if the id does not exist.
func (s *Store) UpdateUser(user User, newPassword string) error {
	if _, err := enums.ParseRole(user.Role.String()); err != nil {
		return err
	}
	if _, err := enums.ParseUserStatus(user.Status.String()); err != nil {
		return err
	}

	var res sql.Result
	var err error
	if newPassword != "" {
		var hash []byte
		hash, err = bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		res, err = s.db.Exec(`UPDATE users SET email = ?, name = ?, role = ?, status = ?,
			allowed_sub_clients = ?, password_hash = ? WHERE id = ?`,
			user.Email, user.Name, user.Role, user.Status, user.AllowedSubClients, string(hash), user.ID)
	} else {
		res, err = s.db.Exec(`UPDATE users SET email = ?, name = ?, role = ?, status = ?,
			allowed_sub_clients = ? WHERE id = ?`,
			user.Email, user.Name, user.Role, user.Status, user.AllowedSubClients, user.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes an account, no-op if absent
func (s *Store) DeleteUser(id string) error {
	if _, err := s.db.Exec("DELETE FROM users WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}

// RecordLogin appends a successful login to the user's history
func (s *Store) RecordLogin(userID, remoteAddr string) error {
	_, err := s.db.Exec("INSERT INTO user_logins (user_id, logged_at, remote_addr) VALUES (?, ?, ?)",
		userID, time.Now().Unix(), remoteAddr)
	if err != nil {
		return fmt.Errorf("failed to record login for %s: %w", userID, err)
	}
	return nil
}

// LoginHistory returns the most recent logins for a user, newest first
func (s *Store) LoginHistory(userID string, limit int) ([]LoginEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT logged_at, remote_addr FROM user_logins
		WHERE user_id = ? ORDER BY logged_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login history: %w", err)
	}
	defer rows.Close()

	var events []LoginEvent
	for rows.Next() {
		var at int64
		var addr string
		if err := rows.Scan(&at, &addr); err != nil {
			return nil, fmt.Errorf("failed to scan login row: %w", err)
		}
		events = append(events, LoginEvent{At: timeOrZero(at), RemoteAddr: addr})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login rows: %w", err)
	}
	return events, nil
}
