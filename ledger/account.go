package ledger

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	bin "github.com/gagliardetto/binary"
)

// Account is a data-carrying account and its current balance.
type Account struct {
	Address Address
	Owner   Address
	Data    []byte
	Balance uint64
}

type accountRecord struct {
	Owner Address
	Data  []byte
}

func readAccount(tx Tx, addr Address) (*Account, error) {
	raw := tx.Get(BucketAccounts, addr[:])
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	var rec accountRecord
	if err := bin.UnmarshalBorsh(&rec, raw); err != nil {
		return nil, fmt.Errorf("ledger: decode account %s: %w", addr, err)
	}
	return &Account{
		Address: addr,
		Owner:   rec.Owner,
		Data:    rec.Data,
		Balance: readBalance(tx, addr),
	}, nil
}

func writeAccount(tx Tx, addr, owner Address, data []byte) error {
	raw, err := bin.MarshalBorsh(&accountRecord{Owner: owner, Data: data})
	if err != nil {
		return fmt.Errorf("ledger: encode account %s: %w", addr, err)
	}
	return tx.Put(BucketAccounts, addr[:], raw)
}

func readBalance(tx Tx, addr Address) uint64 {
	v := tx.Get(BucketBalances, addr[:])
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func writeBalance(tx Tx, addr Address, amount uint64) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], amount)
	return tx.Put(BucketBalances, addr[:], v[:])
}

func readNonce(tx Tx, addr Address) uint64 {
	v := tx.Get(BucketNonces, addr[:])
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

// useNonce consumes nonce if it is addr's next sequence number.
func useNonce(tx Tx, addr Address, nonce uint64) error {
	next := readNonce(tx, addr)
	if nonce != next {
		return fmt.Errorf("%w: %s expects %d, got %d", ErrStaleNonce, addr, next, nonce)
	}
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], next+1)
	return tx.Put(BucketNonces, addr[:], v[:])
}

func credit(tx Tx, addr Address, amount uint64) error {
	sum, carry := bits.Add64(readBalance(tx, addr), amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: crediting %d to %s", ErrBalanceOverflow, amount, addr)
	}
	return writeBalance(tx, addr, sum)
}

func debit(tx Tx, addr Address, amount uint64) error {
	bal := readBalance(tx, addr)
	if bal < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, addr, bal, amount)
	}
	return writeBalance(tx, addr, bal-amount)
}

func move(tx Tx, from, to Address, amount uint64) error {
	if err := debit(tx, from, amount); err != nil {
		return err
	}
	return credit(tx, to, amount)
}
