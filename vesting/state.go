package vesting

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/bitfsorg/vestledger-go/ledger"
	bin "github.com/gagliardetto/binary"
)

// DiscriminatorLen is the length of the type tag prefixed to every record
// and instruction.
const DiscriminatorLen = 8

// Discriminator is an 8-byte type tag.
type Discriminator [DiscriminatorLen]byte

func newDiscriminator(namespace, name string) Discriminator {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], h[:DiscriminatorLen])
	return d
}

var (
	configDiscriminator   = newDiscriminator("account", "GlobalConfig")
	scheduleDiscriminator = newDiscriminator("account", "VestingSchedule")
	vaultDiscriminator    = newDiscriminator("account", "CustodyVault")
)

// GlobalConfig holds deployment-wide settings. Authority and FeeDestination
// are never the zero address.
type GlobalConfig struct {
	Authority      ledger.Address
	FeeDestination ledger.Address
	CreationFee    uint64
}

// Schedule is one beneficiary's grant. EndTime is recorded but does not
// affect how much is claimable; only the period parameters do.
type Schedule struct {
	Config          ledger.Address
	Grantor         ledger.Address
	Beneficiary     ledger.Address
	TotalAmount     uint64
	StartTime       uint64
	EndTime         uint64
	PeriodCount     uint64
	PeriodDuration  uint64
	AmountPerPeriod uint64
	ClaimedAmount   uint64
	Vault           ledger.Address
}

// Vault records which schedule a custody address belongs to and the nonce
// that derives it.
type Vault struct {
	Schedule ledger.Address
	Bump     uint8
}

func encodeRecord(d Discriminator, v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("vesting: encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(d Discriminator, data []byte, v interface{}) error {
	if len(data) < DiscriminatorLen || !bytes.Equal(data[:DiscriminatorLen], d[:]) {
		return ErrAccountDiscriminator
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorLen:]).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrAccountDiscriminator, err)
	}
	return nil
}

// DecodeGlobalConfig parses a configuration account's data.
func DecodeGlobalConfig(data []byte) (*GlobalConfig, error) {
	var c GlobalConfig
	if err := decodeRecord(configDiscriminator, data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeSchedule parses a schedule account's data.
func DecodeSchedule(data []byte) (*Schedule, error) {
	var s Schedule
	if err := decodeRecord(scheduleDiscriminator, data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeVault parses a vault account's data.
func DecodeVault(data []byte) (*Vault, error) {
	var v Vault
	if err := decodeRecord(vaultDiscriminator, data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Encode serializes the configuration with its discriminator.
func (c *GlobalConfig) Encode() ([]byte, error) { return encodeRecord(configDiscriminator, c) }

// Encode serializes the schedule with its discriminator.
func (s *Schedule) Encode() ([]byte, error) { return encodeRecord(scheduleDiscriminator, s) }

// Encode serializes the vault with its discriminator.
func (v *Vault) Encode() ([]byte, error) { return encodeRecord(vaultDiscriminator, v) }
