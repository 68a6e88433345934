// Package account holds the credential rules shared by login, account
// provisioning and the startup admin seed.
package account

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/visitorlog/internal/model"
	"github.com/dukerupert/visitorlog/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the shortest password accepted for a new account.
const MinPasswordLen = 8

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
)

// dummyHash keeps a failed lookup as slow as a failed comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("visitorlog-dummy-password"), bcrypt.DefaultCost)

// ValidateNew checks the credentials of an account about to be created.
func ValidateNew(username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return ErrMissingCredentials
	}
	if len([]rune(password)) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches u's stored hash. A nil user
// never matches but still costs one bcrypt comparison.
func CheckPassword(u *model.User, password string) bool {
	if u == nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SeedAdmin writes the bootstrap admin. Every call overwrites the stored
// hash and admin flag of that username, so a restart restores the
// configured password even if someone changed it in the database.
func SeedAdmin(users *store.UserStore, username, password string, logger *slog.Logger) (*model.User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := users.SeedAdmin(username, hash)
	if err != nil {
		return nil, err
	}
	logger.Warn("bootstrap admin credentials reset to configured values", "username", u.Username, "user_id", u.ID)
	return u, nil
}
