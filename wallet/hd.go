package wallet

import (
	"fmt"

	"github.com/bitfsorg/vestledger-go/ledger"
	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	// BIP44 path constants.
	PurposeBIP44     = 44
	CoinType         = 236
	IdentityAccount  = 0
	IdentityChain    = 0
	MaxIdentityIndex = 1<<31 - 1 // 2^31 - 1 (non-hardened max)

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet derives identity keys from a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
	network   string
}

// KeyPair holds a derived key and the ledger address it controls.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Address    ledger.Address `json:"address"`
	Path       string         `json:"path"` // Human-readable derivation path
}

// chainParams maps a network name onto the BIP32 version bytes.
func chainParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNet, nil
	case "testnet", "regtest":
		return &chaincfg.TestNet, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, network)
	}
}

// NewWallet creates a Wallet from a BIP39 seed. An empty network means mainnet.
func NewWallet(seed []byte, network string) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	net, err := chainParams(network)
	if err != nil {
		return nil, err
	}
	if network == "" {
		network = "mainnet"
	}

	masterKey, err := bip32.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	return &Wallet{
		masterKey: masterKey,
		network:   network,
	}, nil
}

// Network returns the wallet's network name.
func (w *Wallet) Network() string {
	return w.network
}

// DeriveIdentity derives the key pair for an identity index.
//
//	Path: m/44'/236'/0'/0/index
func (w *Wallet) DeriveIdentity(index uint32) (*KeyPair, error) {
	if index > MaxIdentityIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	// m/44'
	purpose, err := w.masterKey.Child(PurposeBIP44 + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: purpose derivation: %w", ErrDerivationFailed, err)
	}

	// m/44'/236'
	coinType, err := purpose.Child(CoinType + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: coin type derivation: %w", ErrDerivationFailed, err)
	}

	// m/44'/236'/0'
	accountKey, err := coinType.Child(IdentityAccount + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: account derivation: %w", ErrDerivationFailed, err)
	}

	// m/44'/236'/0'/0
	chainKey, err := accountKey.Child(IdentityChain)
	if err != nil {
		return nil, fmt.Errorf("%w: chain derivation: %w", ErrDerivationFailed, err)
	}

	// m/44'/236'/0'/0/index
	childKey, err := chainKey.Child(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index derivation: %w", ErrDerivationFailed, err)
	}

	return extKeyToKeyPair(childKey, fmt.Sprintf("m/44'/236'/%d'/%d/%d", IdentityAccount, IdentityChain, index))
}

// extKeyToKeyPair converts a BIP32 extended key to a KeyPair.
func extKeyToKeyPair(extKey *bip32.ExtendedKey, path string) (*KeyPair, error) {
	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	pubKey := privKey.PubKey()
	if pubKey == nil {
		return nil, fmt.Errorf("%w: failed to derive public key", ErrDerivationFailed)
	}

	return &KeyPair{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Address:    ledger.AddressFromPublicKey(pubKey),
		Path:       path,
	}, nil
}
