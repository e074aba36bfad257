// Package wallet holds the signing identities used to drive the ledger:
// operators, grantors and beneficiaries. Keys come from one BIP39 seed,
// encrypted at rest, and are derived as m/44'/236'/0'/0/{index}.
package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"golang.org/x/crypto/argon2"
)

// Entropy sizes accepted by GenerateMnemonic.
const (
	Mnemonic12Words = 128
	Mnemonic24Words = 256
)

// SeedFileName is the encrypted seed file inside the data directory.
const SeedFileName = "wallet.enc"

// GenerateMnemonic returns a fresh English BIP39 phrase of 12 or 24 words.
func GenerateMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", ErrInvalidEntropy
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("wallet: entropy: %w", err)
	}
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic reports whether mnemonic is a valid BIP39 phrase.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// SeedFromMnemonic returns the 64-byte BIP39 seed. An empty passphrase is
// still a passphrase: it yields the standard seed.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("wallet: derive seed: %w", err)
	}
	return seed, nil
}

// The seed file is a fixed header followed by an AES-256-GCM box:
//
//	magic "VLSD" | version | argon2 time (u32) | memory KiB (u32) | threads | salt | nonce
//	seal(seed || sha256(seed)[:4]), with the header as additional data
//
// The KDF cost travels in the header so files stay readable if the
// defaults change.
var seedMagic = []byte("VLSD")

const (
	seedVersion = 1
	saltSize    = 16
	gcmNonce    = 12
	sumSize     = 4
	headerSize  = 4 + 1 + 4 + 4 + 1 + saltSize + gcmNonce
)

type kdfParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

var defaultKDF = kdfParams{time: 3, memory: 64 * 1024, threads: 4}

func (p kdfParams) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, 32)
}

type seedHeader struct {
	kdf   kdfParams
	salt  [saltSize]byte
	nonce [gcmNonce]byte
}

func (h *seedHeader) marshal() []byte {
	b := make([]byte, 0, headerSize)
	b = append(b, seedMagic...)
	b = append(b, seedVersion)
	b = binary.BigEndian.AppendUint32(b, h.kdf.time)
	b = binary.BigEndian.AppendUint32(b, h.kdf.memory)
	b = append(b, h.kdf.threads)
	b = append(b, h.salt[:]...)
	return append(b, h.nonce[:]...)
}

func parseSeedHeader(b []byte) (*seedHeader, error) {
	if len(b) < headerSize || !bytes.Equal(b[:4], seedMagic) || b[4] != seedVersion {
		return nil, ErrDecryptionFailed
	}
	h := &seedHeader{kdf: kdfParams{
		time:    binary.BigEndian.Uint32(b[5:9]),
		memory:  binary.BigEndian.Uint32(b[9:13]),
		threads: b[13],
	}}
	if h.kdf.time == 0 || h.kdf.memory == 0 || h.kdf.threads == 0 {
		return nil, ErrDecryptionFailed
	}
	copy(h.salt[:], b[14:14+saltSize])
	copy(h.nonce[:], b[14+saltSize:headerSize])
	return h, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seedSum(seed []byte) []byte {
	sum := sha256.Sum256(seed)
	return sum[:sumSize]
}

// EncryptSeed seals seed under password with a fresh salt and nonce.
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	h := &seedHeader{kdf: defaultKDF}
	if _, err := rand.Read(h.salt[:]); err != nil {
		return nil, fmt.Errorf("wallet: salt: %w", err)
	}
	if _, err := rand.Read(h.nonce[:]); err != nil {
		return nil, fmt.Errorf("wallet: nonce: %w", err)
	}
	aead, err := newGCM(h.kdf.key(password, h.salt[:]))
	if err != nil {
		return nil, fmt.Errorf("wallet: cipher: %w", err)
	}
	header := h.marshal()
	plain := append(append([]byte{}, seed...), seedSum(seed)...)
	return aead.Seal(header, h.nonce[:], plain, header), nil
}

// DecryptSeed opens a blob produced by EncryptSeed. Any malformed input or
// wrong password yields ErrDecryptionFailed.
func DecryptSeed(encrypted []byte, password string) ([]byte, error) {
	h, err := parseSeedHeader(encrypted)
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(h.kdf.key(password, h.salt[:]))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plain, err := aead.Open(nil, h.nonce[:], encrypted[headerSize:], encrypted[:headerSize])
	if err != nil || len(plain) <= sumSize {
		return nil, ErrDecryptionFailed
	}
	seed, sum := plain[:len(plain)-sumSize], plain[len(plain)-sumSize:]
	if subtle.ConstantTimeCompare(sum, seedSum(seed)) != 1 {
		return nil, ErrChecksumMismatch
	}
	return seed, nil
}

// SaveSeed encrypts seed into a new file at path. It refuses to replace an
// existing wallet.
func SaveSeed(path string, seed []byte, password string) error {
	blob, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("wallet: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrWalletExists, path)
	}
	if err != nil {
		return fmt.Errorf("wallet: create seed file: %w", err)
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("wallet: write seed file: %w", err)
	}
	return f.Close()
}

// LoadSeed reads and decrypts the seed file at path.
func LoadSeed(path, password string) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet: read seed file: %w", err)
	}
	return DecryptSeed(blob, password)
}
