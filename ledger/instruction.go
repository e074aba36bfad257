package ledger

import (
	"crypto/sha256"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	bin "github.com/gagliardetto/binary"
)

// Instruction is a call into a registered program. Signers are ordered; the
// first signer is the caller. Nonce must equal the caller's next sequence
// number on the ledger, so a signed instruction executes at most once.
type Instruction struct {
	ProgramID Address
	Signers   []Address
	Nonce     uint64
	Data      []byte
}

// SignedInstruction carries one DER signature per signer, in signer order.
type SignedInstruction struct {
	Instruction
	Signatures [][]byte
}

// Digest returns SHA256 over the borsh encoding of the instruction.
func (ix *Instruction) Digest() ([]byte, error) {
	raw, err := bin.MarshalBorsh(ix)
	if err != nil {
		return nil, fmt.Errorf("ledger: encode instruction: %w", err)
	}
	h := sha256.Sum256(raw)
	return h[:], nil
}

// SignInstruction builds an instruction for programID whose signers are the
// given keys, in order, and signs it with each of them. nonce is the first
// key's next sequence number (see Ledger.Nonce).
func SignInstruction(programID Address, nonce uint64, data []byte, keys ...*ec.PrivateKey) (*SignedInstruction, error) {
	if len(keys) == 0 {
		return nil, ErrNoSigners
	}

	ix := Instruction{ProgramID: programID, Nonce: nonce, Data: data}
	for _, k := range keys {
		if k == nil {
			return nil, fmt.Errorf("%w: signing key", ErrNilParam)
		}
		ix.Signers = append(ix.Signers, AddressFromPublicKey(k.PubKey()))
	}

	digest, err := ix.Digest()
	if err != nil {
		return nil, err
	}

	signed := &SignedInstruction{Instruction: ix}
	for i, k := range keys {
		sig, err := k.Sign(digest)
		if err != nil {
			return nil, fmt.Errorf("ledger: sign with signer %d: %w", i, err)
		}
		signed.Signatures = append(signed.Signatures, sig.Serialize())
	}
	return signed, nil
}

// Verify checks that every signer produced a valid signature over the digest.
func (s *SignedInstruction) Verify() error {
	if len(s.Signers) == 0 {
		return ErrNoSigners
	}
	if len(s.Signatures) != len(s.Signers) {
		return fmt.Errorf("%w: %d signers, %d signatures", ErrMissingSignature, len(s.Signers), len(s.Signatures))
	}

	digest, err := s.Digest()
	if err != nil {
		return err
	}

	for i, signer := range s.Signers {
		pub, err := signer.PublicKey()
		if err != nil {
			return fmt.Errorf("%w: signer %d: %w", ErrInvalidSignature, i, err)
		}
		sig, err := ec.ParseDERSignature(s.Signatures[i])
		if err != nil {
			return fmt.Errorf("%w: signer %d: %w", ErrInvalidSignature, i, err)
		}
		if !sig.Verify(digest, pub) {
			return fmt.Errorf("%w: signer %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}
