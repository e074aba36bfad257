package ledger

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("ledger: nil parameter")

	// ErrInvalidAddress indicates an address is malformed.
	ErrInvalidAddress = errors.New("ledger: invalid address")

	// ErrInvalidSeeds indicates derivation seeds exceed the allowed count or length.
	ErrInvalidSeeds = errors.New("ledger: invalid derivation seeds")

	// ErrAddressOnCurve indicates a derivation candidate is a valid public key
	// and therefore cannot serve as a program address.
	ErrAddressOnCurve = errors.New("ledger: derived address lies on the curve")

	// ErrNoViableBump indicates no nonce in [0, 255] yields an off-curve address.
	ErrNoViableBump = errors.New("ledger: unable to find a viable derivation nonce")

	// ErrInsufficientFunds indicates a debit exceeds the available balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrBalanceOverflow indicates a credit would overflow the recipient balance.
	ErrBalanceOverflow = errors.New("ledger: balance overflow")

	// ErrAccountInUse indicates the account address already holds data.
	ErrAccountInUse = errors.New("ledger: account already in use")

	// ErrAccountNotFound indicates no account exists at the address.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrIllegalOwner indicates a program tried to write an account it does not own.
	ErrIllegalOwner = errors.New("ledger: account not owned by program")

	// ErrMissingSignature indicates an address required to authorize a debit did not sign.
	ErrMissingSignature = errors.New("ledger: missing required signature")

	// ErrInvalidSignature indicates a signature does not verify against its signer.
	ErrInvalidSignature = errors.New("ledger: invalid signature")

	// ErrNoSigners indicates an instruction carries no signers.
	ErrNoSigners = errors.New("ledger: instruction has no signers")

	// ErrUnknownProgram indicates no program is registered under the instruction's program id.
	ErrUnknownProgram = errors.New("ledger: unknown program")

	// ErrProgramExists indicates a program id is already registered.
	ErrProgramExists = errors.New("ledger: program already registered")

	// ErrStaleNonce indicates an instruction whose nonce is not the caller's
	// next sequence number, for example a resubmitted one.
	ErrStaleNonce = errors.New("ledger: stale or out-of-order nonce")

	// ErrReadOnly indicates a write was attempted inside a read-only transaction.
	ErrReadOnly = errors.New("ledger: read-only transaction")
)
