// Package credentials resolves opaque credential references to
// transport-ready secrets. The core treats the returned material as opaque
// bytes and never logs it.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Credential is resolved SSH key material for one reference.
type Credential struct {
	// KeyPath is the on-disk location of the private key
	KeyPath string

	// Key is the PEM-encoded private key material
	Key []byte

	// Passphrase decrypts the key when it is encrypted; nil otherwise
	Passphrase []byte
}

// Store resolves references against a directory of key files. A reference
// "prod-01-deploy-key" maps to <dir>/prod-01-deploy-key, with an optional
// <dir>/prod-01-deploy-key.passphrase holding the decryption passphrase.
type Store struct {
	dir string
}

// NewStore creates a file-backed credential store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Resolve loads the key material for a reference. The reference must be a
// bare name; path traversal is rejected.
func (s *Store) Resolve(ref string) (*Credential, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty credential reference")
	}
	if strings.ContainsAny(ref, "/\\") || ref != filepath.Base(ref) {
		return nil, fmt.Errorf("invalid credential reference %q", ref)
	}

	keyPath := filepath.Join(s.dir, ref)
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("credential %s not resolvable: %w", ref, err)
	}

	cred := &Credential{KeyPath: keyPath, Key: key}

	// Passphrase file is optional; absence means an unencrypted key.
	if pass, err := os.ReadFile(keyPath + ".passphrase"); err == nil {
		cred.Passphrase = []byte(strings.TrimSpace(string(pass)))
	}

	return cred, nil
}
