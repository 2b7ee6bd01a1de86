// Package auth issues and verifies the PASETO access tokens presented by the
// browser extension.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile is the name of the token key file inside the data directory.
const KeyFile = "auth.key"

// PASETO v4 local tokens use a 256-bit symmetric key, stored hex encoded.
const keySize = 32

// LoadOrGenerateKey returns the hex-encoded token key kept in dir, creating
// one on first start. The file is written with owner-only permissions.
func LoadOrGenerateKey(dir string) (string, error) {
	path := filepath.Join(dir, KeyFile)

	//#nosec G304 -- path is built from the configured data directory
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		keyHex := strings.TrimSpace(string(raw))
		if err := checkKeyHex(keyHex); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		return keyHex, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate auth key: %w", err)
	}
	keyHex := hex.EncodeToString(key)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(keyHex+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("save auth key: %w", err)
	}
	return keyHex, nil
}

func checkKeyHex(keyHex string) error {
	if len(keyHex) != keySize*2 {
		return fmt.Errorf("auth key must be %d hex characters, got %d", keySize*2, len(keyHex))
	}
	if _, err := hex.DecodeString(keyHex); err != nil {
		return fmt.Errorf("auth key is not valid hex: %w", err)
	}
	return nil
}
