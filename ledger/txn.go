package ledger

import (
	"fmt"
	"time"
)

// Txn is the view of the ledger given to a program while it processes one
// instruction. All effects are discarded if Process returns an error.
type Txn struct {
	tx          Tx
	program     Address
	signers     []Address
	now         time.Time
	returnData  []byte
	afterCommit []func()
}

// ProgramID returns the id of the executing program.
func (t *Txn) ProgramID() Address { return t.program }

// Now returns the ledger time captured when the transaction started.
func (t *Txn) Now() time.Time { return t.now }

// UnixTime returns Now in whole seconds. Times before the epoch read as 0.
func (t *Txn) UnixTime() uint64 {
	s := t.now.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}

// Caller returns the first signer.
func (t *Txn) Caller() Address { return t.signers[0] }

// IsSigner reports whether addr signed the instruction.
func (t *Txn) IsSigner(addr Address) bool {
	for _, s := range t.signers {
		if s == addr {
			return true
		}
	}
	return false
}

// Balance returns the current balance of addr, including writes made earlier
// in this transaction.
func (t *Txn) Balance(addr Address) uint64 { return readBalance(t.tx, addr) }

// Transfer moves amount from a signer to another address.
func (t *Txn) Transfer(from, to Address, amount uint64) error {
	if !t.IsSigner(from) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, from)
	}
	return move(t.tx, from, to, amount)
}

// TransferSigned moves amount out of a program-derived address. The seeds
// (including the nonce) must derive from under the executing program's id.
func (t *Txn) TransferSigned(from, to Address, amount uint64, seeds ...[]byte) error {
	derived, err := CreateProgramAddress(seeds, t.program)
	if err != nil {
		return err
	}
	if derived != from {
		return fmt.Errorf("%w: seeds do not derive %s", ErrMissingSignature, from)
	}
	return move(t.tx, from, to, amount)
}

// CreateAccount stores data at addr owned by the executing program.
func (t *Txn) CreateAccount(addr Address, data []byte) error {
	if t.tx.Get(BucketAccounts, addr[:]) != nil {
		return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
	}
	return writeAccount(t.tx, addr, t.program, data)
}

// Account reads the account at addr.
func (t *Txn) Account(addr Address) (*Account, error) { return readAccount(t.tx, addr) }

// WriteAccount replaces the data of an account owned by the executing program.
func (t *Txn) WriteAccount(addr Address, data []byte) error {
	acct, err := readAccount(t.tx, addr)
	if err != nil {
		return err
	}
	if acct.Owner != t.program {
		return fmt.Errorf("%w: %s", ErrIllegalOwner, addr)
	}
	return writeAccount(t.tx, addr, t.program, data)
}

// AfterCommit registers fn to run once the transaction has committed. It is
// dropped if the transaction rolls back.
func (t *Txn) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// SetReturnData attaches a result to the instruction receipt.
func (t *Txn) SetReturnData(data []byte) {
	t.returnData = append([]byte(nil), data...)
}
