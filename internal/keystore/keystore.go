// removebg-square - batch background removal with XMP provenance tagging
// Copyright (C) 2026  The bg-remove-wpd authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package keystore stores the remove.bg API key encrypted at rest.
//
// The key file holds a random scrypt salt followed by the AES-CFB
// ciphertext of a magic marker and the API key.  The marker lets Load
// tell a wrong passphrase apart from a corrupt file.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	keyLength    = 32
	saltLength   = 32
	marker       = "rbsq1\x00"
	keyFileName  = "credentials"
	configSubdir = "removebg-square"
)

var (
	// ErrWrongPassphrase reports a passphrase that does not decrypt the
	// stored key.
	ErrWrongPassphrase = errors.New("keystore: wrong passphrase")

	// ErrNoKey reports that no key has been stored yet.
	ErrNoKey = errors.New("keystore: no stored API key")
)

// DefaultPath returns the per-user location of the key file.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("keystore: no user config dir: %w", err)
	}
	return filepath.Join(dir, configSubdir, keyFileName), nil
}

// Save encrypts apiKey with a key derived from passphrase and writes it
// to path, creating parent directories as needed.
func Save(path, apiKey string, passphrase []byte) error {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("keystore: generating salt: %w", err)
	}
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return fmt.Errorf("keystore: deriving key: %w", err)
	}

	plain := append([]byte(marker), apiKey...)
	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	sealed := make([]byte, aes.BlockSize+len(plain))
	iv := sealed[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return fmt.Errorf("keystore: generating iv: %w", err)
	}
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(sealed[aes.BlockSize:], plain)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	return os.WriteFile(path, append(salt, sealed...), 0o600)
}

// Load decrypts the stored API key using passphrase.
func Load(path string, passphrase []byte) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoKey
	}
	if err != nil {
		return "", fmt.Errorf("keystore: %w", err)
	}
	if len(data) < saltLength+aes.BlockSize+len(marker) {
		return "", ErrWrongPassphrase
	}

	salt, sealed := data[:saltLength], data[saltLength:]
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return "", fmt.Errorf("keystore: deriving key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("keystore: %w", err)
	}

	plain := make([]byte, len(sealed)-aes.BlockSize)
	cipher.NewCFBDecrypter(block, sealed[:aes.BlockSize]).XORKeyStream(plain, sealed[aes.BlockSize:])
	if string(plain[:len(marker)]) != marker {
		return "", ErrWrongPassphrase
	}
	return string(plain[len(marker):]), nil
}
