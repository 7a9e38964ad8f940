package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	MaxLoginAttempts = 5
	LockoutSeconds   = 600 // 10 minutes
)

// User is an admin account
type User struct {
	Username     string
	PasswordHash string
	TOTPSecret   string
	CreatedAt    int64
}

// CreateUser creates a new user with hashed password
func (db *DB) CreateUser(username, password, totpSecret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	_, err = db.Exec(`
		INSERT INTO users (username, password_hash, totp_secret, created_at)
		VALUES (?, ?, ?, ?)
	`, username, string(hash), totpSecret, time.Now().Unix())

	if err != nil {
		return errors.Wrap(err, "failed to create user")
	}

	return nil
}

// GetUser retrieves a user by username
func (db *DB) GetUser(username string) (*User, error) {
	user := &User{}
	err := db.QueryRow(`
		SELECT username, password_hash, totp_secret, created_at
		FROM users
		WHERE username = ?
	`, username).Scan(&user.Username, &user.PasswordHash, &user.TOTPSecret, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}

	return user, nil
}

// VerifyPassword checks the password against the stored hash and returns the
// user on success.
func (db *DB) VerifyPassword(username, password string) (*User, error) {
	user, err := db.GetUser(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	return user, nil
}

// UserExists checks if a user exists
func (db *DB) UserExists(username string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username).Scan(&exists)
	return exists, err
}

// IsLoginLocked checks if login is locked for a given IP and username
func (db *DB) IsLoginLocked(ip, username string) (bool, error) {
	key := fmt.Sprintf("%s:%s", ip, username)

	var count int
	var lastAttempt int64
	err := db.QueryRow(`
		SELECT count, last_attempt FROM failed_logins WHERE key = ?
	`, key).Scan(&count, &lastAttempt)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if count < MaxLoginAttempts {
		return false, nil
	}

	// Check if lockout period has expired
	return time.Now().Unix()-lastAttempt < LockoutSeconds, nil
}

// RegisterFailedLogin records a failed login attempt
func (db *DB) RegisterFailedLogin(ip, username string) error {
	key := fmt.Sprintf("%s:%s", ip, username)
	now := time.Now().Unix()

	_, err := db.Exec(`
		INSERT INTO failed_logins (key, count, last_attempt)
		VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = count + 1,
			last_attempt = ?
	`, key, now, now)

	return err
}

// ResetFailedLogin clears failed login attempts for a user
func (db *DB) ResetFailedLogin(ip, username string) error {
	key := fmt.Sprintf("%s:%s", ip, username)
	_, err := db.Exec(`DELETE FROM failed_logins WHERE key = ?`, key)
	return err
}
