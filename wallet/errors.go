package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be 128 or 256")

	// ErrIndexOutOfRange indicates an identity index reaches the BIP32 hardened boundary.
	ErrIndexOutOfRange = errors.New("wallet: identity index exceeds maximum (2^31-1)")

	// ErrIdentityNotFound indicates the named identity does not exist.
	ErrIdentityNotFound = errors.New("wallet: identity not found")

	// ErrIdentityExists indicates the identity name is already taken.
	ErrIdentityExists = errors.New("wallet: identity already exists")

	// ErrInvalidName indicates an empty or whitespace-only identity name.
	ErrInvalidName = errors.New("wallet: identity name must not be empty")

	// ErrDecryptionFailed indicates wrong password or corrupted wallet data.
	ErrDecryptionFailed = errors.New("wallet: seed decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates seed checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("wallet: seed checksum mismatch")

	// ErrInvalidNetwork indicates an unknown network name.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")

	// ErrWalletExists indicates an encrypted seed file is already present.
	ErrWalletExists = errors.New("wallet: wallet file already exists")

	// ErrWalletNotFound indicates no encrypted seed file is present.
	ErrWalletNotFound = errors.New("wallet: wallet file not found")
)
