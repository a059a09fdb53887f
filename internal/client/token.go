package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tokenFileName = ".glicoflow_token"

// ErrNoToken means no session is stored; the user must log in.
var ErrNoToken = errors.New("client: not logged in")

// DefaultTokenPath is ~/.glicoflow_token.
func DefaultTokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("client: locating home directory: %w", err)
	}
	return filepath.Join(home, tokenFileName), nil
}

// SaveToken writes token to path, readable by the owner only.
func SaveToken(path, token string) error {
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("client: saving token: %w", err)
	}
	return nil
}

// LoadToken reads the token at path. A missing or empty file is ErrNoToken.
func LoadToken(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("client: reading token: %w", err)
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// DeleteToken removes the token file. Removing a missing file is not an
// error.
func DeleteToken(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("client: deleting token: %w", err)
	}
	return nil
}
