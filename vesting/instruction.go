package vesting

import (
	"bytes"
	"fmt"

	"github.com/bitfsorg/vestledger-go/ledger"
	bin "github.com/gagliardetto/binary"
)

var (
	initializeDiscriminator           = newDiscriminator("global", "initialize")
	createScheduleDiscriminator       = newDiscriminator("global", "create_vesting")
	claimDiscriminator                = newDiscriminator("global", "claim")
	updateCreationFeeDiscriminator    = newDiscriminator("global", "update_creation_fee")
	updateFeeDestinationDiscriminator = newDiscriminator("global", "update_treasury")
	transferAuthorityDiscriminator    = newDiscriminator("global", "transfer_ownership")
)

// InitializeArgs creates a configuration at Config. The caller becomes its
// authority.
type InitializeArgs struct {
	Config         ledger.Address
	FeeDestination ledger.Address
	CreationFee    uint64
}

// CreateScheduleArgs creates a schedule at Schedule under Config, funded by
// the caller.
type CreateScheduleArgs struct {
	Config   ledger.Address
	Schedule ledger.Address
	Params   ScheduleParams
}

// ClaimArgs releases whatever is claimable from Schedule to its beneficiary.
type ClaimArgs struct {
	Schedule ledger.Address
}

// UpdateCreationFeeArgs sets the fee charged for new schedules.
type UpdateCreationFeeArgs struct {
	Config ledger.Address
	NewFee uint64
}

// UpdateFeeDestinationArgs sets where creation fees are paid.
type UpdateFeeDestinationArgs struct {
	Config         ledger.Address
	NewDestination ledger.Address
}

// TransferAuthorityArgs hands the configuration to a new authority.
type TransferAuthorityArgs struct {
	Config       ledger.Address
	NewAuthority ledger.Address
}

func encodeInstruction(d Discriminator, args interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
		return nil, fmt.Errorf("vesting: encode instruction: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeArgs(data []byte, args interface{}) error {
	if err := bin.NewBorshDecoder(data).Decode(args); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInstruction, err)
	}
	return nil
}

// EncodeInitialize builds instruction data for Initialize.
func EncodeInitialize(args InitializeArgs) ([]byte, error) {
	return encodeInstruction(initializeDiscriminator, &args)
}

// EncodeCreateSchedule builds instruction data for CreateSchedule.
func EncodeCreateSchedule(args CreateScheduleArgs) ([]byte, error) {
	return encodeInstruction(createScheduleDiscriminator, &args)
}

// EncodeClaim builds instruction data for Claim.
func EncodeClaim(args ClaimArgs) ([]byte, error) {
	return encodeInstruction(claimDiscriminator, &args)
}

// EncodeUpdateCreationFee builds instruction data for UpdateCreationFee.
func EncodeUpdateCreationFee(args UpdateCreationFeeArgs) ([]byte, error) {
	return encodeInstruction(updateCreationFeeDiscriminator, &args)
}

// EncodeUpdateFeeDestination builds instruction data for UpdateFeeDestination.
func EncodeUpdateFeeDestination(args UpdateFeeDestinationArgs) ([]byte, error) {
	return encodeInstruction(updateFeeDestinationDiscriminator, &args)
}

// EncodeTransferAuthority builds instruction data for TransferAuthority.
func EncodeTransferAuthority(args TransferAuthorityArgs) ([]byte, error) {
	return encodeInstruction(transferAuthorityDiscriminator, &args)
}
