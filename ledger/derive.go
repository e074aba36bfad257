package ledger

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

const (
	// MaxSeeds is the maximum number of seeds, including the nonce, per derivation.
	MaxSeeds = 16

	// MaxSeedLen is the maximum length of a single seed. An address fits.
	MaxSeedLen = AddressSize

	pdaMarker = "ProgramDerivedAddress"
)

// CreateProgramAddress derives an address from seeds and a program id.
//
//	addr = 0x02 || SHA256(seeds... || programID || "ProgramDerivedAddress")
//
// Candidates that decode to a valid curve point are rejected with
// ErrAddressOnCurve.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return ZeroAddress, fmt.Errorf("%w: %d seeds exceeds maximum of %d", ErrInvalidSeeds, len(seeds), MaxSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return ZeroAddress, fmt.Errorf("%w: seed %d is %d bytes, maximum is %d", ErrInvalidSeeds, i, len(seed), MaxSeedLen)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var a Address
	a[0] = 0x02
	copy(a[1:], h.Sum(nil))

	if a.IsOnCurve() {
		return ZeroAddress, ErrAddressOnCurve
	}
	return a, nil
}

// FindProgramAddress searches nonces from 255 down to 0 and returns the first
// off-curve address together with the nonce that produced it.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrAddressOnCurve) {
			return ZeroAddress, 0, err
		}
	}
	return ZeroAddress, 0, ErrNoViableBump
}
