// ABOUTME: Credential encoding and comparison for account passwords
// ABOUTME: Plaintext equality by default, bcrypt as an opt-in scheme

package store

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialScheme is the only place passwords are encoded and compared.
// Switching schemes does not convert existing rows.
type CredentialScheme interface {
	// Name identifies the scheme in config and logs.
	Name() string
	// Encode turns a password into the value stored in users.password.
	Encode(password string) (string, error)
	// Verify reports whether password matches a stored value.
	Verify(stored, password string) bool
}

// PlaintextCredentials stores passwords as given and compares by exact equality.
type PlaintextCredentials struct{}

func (PlaintextCredentials) Name() string { return "plaintext" }

func (PlaintextCredentials) Encode(password string) (string, error) {
	return password, nil
}

func (PlaintextCredentials) Verify(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// BcryptCredentials stores bcrypt hashes. A zero Cost means bcrypt.DefaultCost.
type BcryptCredentials struct {
	Cost int
}

func (BcryptCredentials) Name() string { return "bcrypt" }

func (b BcryptCredentials) Encode(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (BcryptCredentials) Verify(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

// CredentialSchemeByName maps a config value to a scheme.
func CredentialSchemeByName(name string, bcryptCost int) (CredentialScheme, error) {
	switch name {
	case "", "plaintext":
		return PlaintextCredentials{}, nil
	case "bcrypt":
		return BcryptCredentials{Cost: bcryptCost}, nil
	default:
		return nil, fmt.Errorf("%w: unknown credential scheme %q", ErrInvalidInput, name)
	}
}
