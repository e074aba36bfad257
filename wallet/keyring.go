package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// KeyringFileName is the identity registry inside the data directory.
const KeyringFileName = "keyring.json"

// Identity names a derivation index.
type Identity struct {
	Name    string `json:"name"`
	Index   uint32 `json:"index"`
	Deleted bool   `json:"deleted"` // Soft-deleted flag
}

// Keyring is the persisted registry of named identities. Indices are never
// reused, even after deletion.
type Keyring struct {
	Identities []Identity `json:"identities"`
	NextIndex  uint32     `json:"next_index"`

	mu   sync.Mutex
	path string
}

// NewKeyring creates an empty keyring persisted at path.
func NewKeyring(path string) *Keyring {
	return &Keyring{
		Identities: []Identity{},
		path:       path,
	}
}

// LoadKeyring reads the keyring at path. A missing file yields an empty
// keyring.
func LoadKeyring(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewKeyring(path), nil
		}
		return nil, fmt.Errorf("wallet: read keyring: %w", err)
	}

	var k Keyring
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("wallet: parse keyring: %w", err)
	}
	if k.Identities == nil {
		k.Identities = []Identity{}
	}
	if err := k.Validate(); err != nil {
		return nil, fmt.Errorf("wallet: invalid keyring: %w", err)
	}
	k.path = path
	return &k, nil
}

// Save persists the keyring.
func (k *Keyring) Save() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return fmt.Errorf("wallet: marshal keyring: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("wallet: create keyring directory: %w", err)
	}
	return os.WriteFile(k.path, data, 0600)
}

// Validate checks the integrity of a deserialized keyring.
func (k *Keyring) Validate() error {
	seenIdx := make(map[uint32]string)
	seenName := make(map[string]bool)
	var maxIdx uint32

	for _, id := range k.Identities {
		if id.Index > MaxIdentityIndex {
			return fmt.Errorf("identity %q: index %d exceeds BIP32 hardened boundary", id.Name, id.Index)
		}
		if prev, ok := seenIdx[id.Index]; ok {
			return fmt.Errorf("duplicate index %d: identities %q and %q", id.Index, prev, id.Name)
		}
		seenIdx[id.Index] = id.Name

		if !id.Deleted {
			if seenName[id.Name] {
				return fmt.Errorf("duplicate active identity name %q", id.Name)
			}
			seenName[id.Name] = true
		}
		if id.Index >= maxIdx {
			maxIdx = id.Index + 1
		}
	}

	// NextIndex must be past every allocated index to avoid reuse.
	if len(seenIdx) > 0 && k.NextIndex < maxIdx {
		return fmt.Errorf("NextIndex (%d) is less than max index + 1 (%d)", k.NextIndex, maxIdx)
	}
	return nil
}

// Create allocates the next index under name.
func (k *Keyring) Create(name string) (*Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if k.NextIndex > MaxIdentityIndex {
		return nil, fmt.Errorf("%w: identity limit reached", ErrIndexOutOfRange)
	}
	for _, id := range k.Identities {
		if id.Name == name && !id.Deleted {
			return nil, fmt.Errorf("%w: %q", ErrIdentityExists, name)
		}
	}

	id := Identity{Name: name, Index: k.NextIndex}
	k.Identities = append(k.Identities, id)
	k.NextIndex++
	return &id, nil
}

// Get returns the active identity called name.
func (k *Keyring) Get(name string) (*Identity, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i := range k.Identities {
		if k.Identities[i].Name == name && !k.Identities[i].Deleted {
			id := k.Identities[i]
			return &id, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrIdentityNotFound, name)
}

// List returns all active identities.
func (k *Keyring) List() []Identity {
	k.mu.Lock()
	defer k.mu.Unlock()

	var active []Identity
	for _, id := range k.Identities {
		if !id.Deleted {
			active = append(active, id)
		}
	}
	return active
}

// Rename changes the name of an active identity.
func (k *Keyring) Rename(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrInvalidName
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	for _, id := range k.Identities {
		if id.Name == newName && !id.Deleted {
			return fmt.Errorf("%w: %q", ErrIdentityExists, newName)
		}
	}
	for i := range k.Identities {
		if k.Identities[i].Name == oldName && !k.Identities[i].Deleted {
			k.Identities[i].Name = newName
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrIdentityNotFound, oldName)
}

// Delete marks an identity as deleted. Its index is not reused.
func (k *Keyring) Delete(name string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for i := range k.Identities {
		if k.Identities[i].Name == name && !k.Identities[i].Deleted {
			k.Identities[i].Deleted = true
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrIdentityNotFound, name)
}

// Key derives the key pair of the identity called name.
func (w *Wallet) Key(k *Keyring, name string) (*KeyPair, error) {
	id, err := k.Get(name)
	if err != nil {
		return nil, err
	}
	return w.DeriveIdentity(id.Index)
}
