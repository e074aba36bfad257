package vesting

import (
	"errors"
	"fmt"

	"github.com/bitfsorg/vestledger-go/ledger"
)

// VaultSeed prefixes the derivation seeds of every custody vault.
const VaultSeed = "vesting_storage"

func vaultSeeds(schedule ledger.Address) [][]byte {
	return [][]byte{[]byte(VaultSeed), schedule[:]}
}

// FindVaultAddress derives the custody vault of a schedule under programID.
func FindVaultAddress(programID, schedule ledger.Address) (ledger.Address, uint8, error) {
	return ledger.FindProgramAddress(vaultSeeds(schedule), programID)
}

// release pays amount out of the schedule's vault. Only the program can
// produce the seeds that authorize it.
func release(tx *ledger.Txn, schedule ledger.Address, vault *Vault, vaultAddr, to ledger.Address, amount uint64) error {
	if vault.Schedule != schedule {
		return fmt.Errorf("%w: vault %s belongs to %s", ErrInvalidVault, vaultAddr, vault.Schedule)
	}
	seeds := append(vaultSeeds(schedule), []byte{vault.Bump})
	if err := tx.TransferSigned(vaultAddr, to, amount, seeds...); err != nil {
		return ledgerError(err)
	}
	return nil
}

// ledgerError maps a ledger failure onto a program error, keeping the
// original in the chain.
func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
	case errors.Is(err, ledger.ErrAccountInUse):
		return fmt.Errorf("%w: %w", ErrAccountInUse, err)
	case errors.Is(err, ledger.ErrAccountNotFound):
		return fmt.Errorf("%w: %w", ErrAccountNotFound, err)
	case errors.Is(err, ledger.ErrMissingSignature), errors.Is(err, ledger.ErrAddressOnCurve):
		return fmt.Errorf("%w: %w", ErrInvalidVault, err)
	default:
		return err
	}
}
