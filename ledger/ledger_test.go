package ledger

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitfsorg/vestledger-go/logger"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProgram is a Program whose behavior is supplied per test.
type mockProgram struct {
	name      string
	ProcessFn func(ctx context.Context, tx *Txn, data []byte) error
}

func (m *mockProgram) ID() Address  { return ProgramID(m.name) }
func (m *mockProgram) Name() string { return m.name }
func (m *mockProgram) Process(ctx context.Context, tx *Txn, data []byte) error {
	return m.ProcessFn(ctx, tx, data)
}

func newTestLedger(t *testing.T, store Store) (*Ledger, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	l, err := New(Config{Logger: logger.NewTest(), Clock: clock, Store: store})
	require.NoError(t, err)
	return l, clock
}

func newKey(t *testing.T) (*ec.PrivateKey, Address) {
	t.Helper()
	priv, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return priv, AddressFromPublicKey(priv.PubKey())
}

// signNext signs with the caller's current nonce.
func signNext(t *testing.T, l *Ledger, program Address, data []byte, keys ...*ec.PrivateKey) *SignedInstruction {
	t.Helper()
	n, err := l.Nonce(AddressFromPublicKey(keys[0].PubKey()))
	require.NoError(t, err)
	ix, err := SignInstruction(program, n, data, keys...)
	require.NoError(t, err)
	return ix
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Store: NewMemStore()}
	require.EqualError(t, cfg.Validate(), "logger is required")

	cfg = Config{Logger: logger.NewTest()}
	require.EqualError(t, cfg.Validate(), "store is required")

	cfg = Config{Logger: logger.NewTest(), Store: NewMemStore()}
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Clock)
}

// ---------------------------------------------------------------------------
// Address and derivation
// ---------------------------------------------------------------------------

func TestAddressRoundTrip(t *testing.T) {
	_, addr := newKey(t)
	require.True(t, addr.IsOnCurve())
	require.False(t, addr.IsZero())

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	text, err := addr.MarshalText()
	require.NoError(t, err)
	var back Address
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, addr, back)

	_, err = ParseAddress("not-base58-0OIl")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = AddressFromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.True(t, ZeroAddress.IsZero())
}

func TestFindProgramAddress(t *testing.T) {
	program := ProgramID("derive-test")
	seeds := [][]byte{[]byte("vesting_storage"), []byte("record")}

	addr, bump, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	assert.False(t, addr.IsOnCurve())

	// Deterministic.
	again, bump2, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
	assert.Equal(t, bump, bump2)

	// Recreating with the stored nonce yields the same address.
	created, err := CreateProgramAddress(append(seeds, []byte{bump}), program)
	require.NoError(t, err)
	assert.Equal(t, addr, created)

	// Different program, different address.
	other, _, err := FindProgramAddress(seeds, ProgramID("other"))
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)
}

func TestFindProgramAddressWithAddressSeed(t *testing.T) {
	program := ProgramID("derive-test")
	_, record := newKey(t)
	seeds := [][]byte{[]byte("vesting_storage"), record[:]}

	addr, bump, err := FindProgramAddress(seeds, program)
	require.NoError(t, err)
	assert.False(t, addr.IsOnCurve())

	created, err := CreateProgramAddress(append(seeds, []byte{bump}), program)
	require.NoError(t, err)
	assert.Equal(t, addr, created)

	_, other := newKey(t)
	otherAddr, _, err := FindProgramAddress([][]byte{[]byte("vesting_storage"), other[:]}, program)
	require.NoError(t, err)
	assert.NotEqual(t, addr, otherAddr)
}

func TestCreateProgramAddressInvalidSeeds(t *testing.T) {
	program := ProgramID("derive-test")

	_, err := CreateProgramAddress([][]byte{make([]byte, MaxSeedLen+1)}, program)
	assert.ErrorIs(t, err, ErrInvalidSeeds)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, program)
	assert.ErrorIs(t, err, ErrInvalidSeeds)

	// FindProgramAddress appends a nonce, so MaxSeeds inputs overflow.
	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), program)
	assert.ErrorIs(t, err, ErrInvalidSeeds)
}

// ---------------------------------------------------------------------------
// Instruction signing
// ---------------------------------------------------------------------------

func TestSignInstruction(t *testing.T) {
	k1, a1 := newKey(t)
	k2, a2 := newKey(t)
	program := ProgramID("sig-test")

	ix, err := SignInstruction(program, 7, []byte{1, 2, 3}, k1, k2)
	require.NoError(t, err)
	require.Equal(t, []Address{a1, a2}, ix.Signers)
	require.NoError(t, ix.Verify())

	t.Run("tampered data", func(t *testing.T) {
		bad := *ix
		bad.Data = []byte{9}
		assert.ErrorIs(t, bad.Verify(), ErrInvalidSignature)
	})

	t.Run("swapped signer", func(t *testing.T) {
		_, a3 := newKey(t)
		bad := *ix
		bad.Signers = []Address{a1, a3}
		assert.ErrorIs(t, bad.Verify(), ErrInvalidSignature)
	})

	t.Run("changed nonce", func(t *testing.T) {
		bad := *ix
		bad.Nonce++
		assert.ErrorIs(t, bad.Verify(), ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		bad := *ix
		bad.Signatures = bad.Signatures[:1]
		assert.ErrorIs(t, bad.Verify(), ErrMissingSignature)
	})

	t.Run("no keys", func(t *testing.T) {
		_, err := SignInstruction(program, 0, nil)
		assert.ErrorIs(t, err, ErrNoSigners)
	})
}

// ---------------------------------------------------------------------------
// Stores
// ---------------------------------------------------------------------------

func storeImpls(t *testing.T) map[string]Store {
	bolt, err := OpenBoltStore(filepath.Join(t.TempDir(), "sub", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]Store{"mem": NewMemStore(), "bolt": bolt}
}

func TestStoreRollback(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Update(func(tx Tx) error {
				return tx.Put(BucketBalances, []byte("a"), []byte{1})
			}))

			err := store.Update(func(tx Tx) error {
				require.NoError(t, tx.Put(BucketBalances, []byte("a"), []byte{2}))
				require.NoError(t, tx.Put(BucketBalances, []byte("b"), []byte{3}))
				assert.Equal(t, []byte{2}, tx.Get(BucketBalances, []byte("a")))
				return ErrInsufficientFunds
			})
			require.ErrorIs(t, err, ErrInsufficientFunds)

			require.NoError(t, store.View(func(tx Tx) error {
				assert.Equal(t, []byte{1}, tx.Get(BucketBalances, []byte("a")))
				assert.Nil(t, tx.Get(BucketBalances, []byte("b")))
				assert.ErrorIs(t, tx.Put(BucketBalances, []byte("c"), nil), ErrReadOnly)
				return nil
			}))
		})
	}
}

func TestStoreForEachOrdered(t *testing.T) {
	for name, store := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Update(func(tx Tx) error {
				for _, k := range []string{"c", "a", "b"} {
					if err := tx.Put(BucketAccounts, []byte(k), []byte(k)); err != nil {
						return err
					}
				}
				return nil
			}))
			var keys []string
			require.NoError(t, store.View(func(tx Tx) error {
				return tx.ForEach(BucketAccounts, func(k, _ []byte) error {
					keys = append(keys, string(k))
					return nil
				})
			}))
			assert.Equal(t, []string{"a", "b", "c"}, keys)
		})
	}
}

func TestBoltStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	l, _ := newTestLedger(t, store)
	_, addr := newKey(t)
	require.NoError(t, l.Airdrop(context.Background(), addr, 42))
	require.NoError(t, store.Close())

	store, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer store.Close()
	l, _ = newTestLedger(t, store)
	bal, err := l.Balance(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), bal)
}

// ---------------------------------------------------------------------------
// Submit
// ---------------------------------------------------------------------------

func TestSubmitTransfer(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	key, from := newKey(t)
	_, to := newKey(t)
	require.NoError(t, l.Airdrop(ctx, from, 100))

	prog := &mockProgram{name: "transfer", ProcessFn: func(_ context.Context, tx *Txn, data []byte) error {
		assert.Equal(t, from, tx.Caller())
		return tx.Transfer(from, to, uint64(data[0]))
	}}
	require.NoError(t, l.Register(prog))
	require.ErrorIs(t, l.Register(prog), ErrProgramExists)

	ix := signNext(t, l, prog.ID(), []byte{30}, key)
	receipt, err := l.Submit(ctx, ix)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID.String())

	fromBal, _ := l.Balance(from)
	toBal, _ := l.Balance(to)
	assert.Equal(t, uint64(70), fromBal)
	assert.Equal(t, uint64(30), toBal)

	ix = signNext(t, l, prog.ID(), []byte{71}, key)
	_, err = l.Submit(ctx, ix)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSubmitTransferRequiresSigner(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	key, _ := newKey(t)
	_, victim := newKey(t)
	require.NoError(t, l.Airdrop(ctx, victim, 100))

	prog := &mockProgram{name: "steal", ProcessFn: func(_ context.Context, tx *Txn, _ []byte) error {
		return tx.Transfer(victim, tx.Caller(), 1)
	}}
	require.NoError(t, l.Register(prog))

	ix := signNext(t, l, prog.ID(), nil, key)
	_, err := l.Submit(ctx, ix)
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestSubmitRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	key, from := newKey(t)
	_, to := newKey(t)
	require.NoError(t, l.Airdrop(ctx, from, 100))
	require.NoError(t, l.Airdrop(ctx, to, math.MaxUint64-10))

	recordAddr := ProgramID("record")
	prog := &mockProgram{name: "partial", ProcessFn: func(_ context.Context, tx *Txn, _ []byte) error {
		if err := tx.CreateAccount(recordAddr, []byte("data")); err != nil {
			return err
		}
		if err := tx.Transfer(from, to, 5); err != nil {
			return err
		}
		// Credit overflows.
		return tx.Transfer(from, to, 50)
	}}
	require.NoError(t, l.Register(prog))

	ix := signNext(t, l, prog.ID(), nil, key)
	_, err := l.Submit(ctx, ix)
	require.ErrorIs(t, err, ErrBalanceOverflow)

	bal, _ := l.Balance(from)
	assert.Equal(t, uint64(100), bal)
	_, err = l.Account(recordAddr)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestSubmitTransferSigned(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	key, caller := newKey(t)

	seeds := [][]byte{[]byte("escrow")}
	prog := &mockProgram{name: "escrow"}
	pda, bump, err := FindProgramAddress(seeds, prog.ID())
	require.NoError(t, err)
	require.NoError(t, l.Airdrop(ctx, pda, 50))

	prog.ProcessFn = func(_ context.Context, tx *Txn, data []byte) error {
		if data[0] == 1 {
			// Wrong nonce.
			return tx.TransferSigned(pda, caller, 10, seeds[0], []byte{bump + 1})
		}
		return tx.TransferSigned(pda, caller, 10, seeds[0], []byte{bump})
	}
	require.NoError(t, l.Register(prog))

	ix := signNext(t, l, prog.ID(), []byte{0}, key)
	_, err = l.Submit(ctx, ix)
	require.NoError(t, err)
	bal, _ := l.Balance(caller)
	assert.Equal(t, uint64(10), bal)

	ix = signNext(t, l, prog.ID(), []byte{1}, key)
	_, err = l.Submit(ctx, ix)
	assert.Error(t, err)

	// Another program cannot move the same derived address.
	thief := &mockProgram{name: "thief", ProcessFn: func(_ context.Context, tx *Txn, _ []byte) error {
		return tx.TransferSigned(pda, caller, 10, seeds[0], []byte{bump})
	}}
	require.NoError(t, l.Register(thief))
	ix = signNext(t, l, thief.ID(), nil, key)
	_, err = l.Submit(ctx, ix)
	assert.Error(t, err)

	bal, _ = l.Balance(pda)
	assert.Equal(t, uint64(40), bal)
}

func TestSubmitAccounts(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLedger(t, NewMemStore())
	key, _ := newKey(t)
	addr := ProgramID("acct")

	owner := &mockProgram{name: "owner", ProcessFn: func(_ context.Context, tx *Txn, data []byte) error {
		if _, err := tx.Account(addr); err != nil {
			if err := tx.CreateAccount(addr, data); err != nil {
				return err
			}
		} else if err := tx.WriteAccount(addr, data); err != nil {
			return err
		}
		tx.SetReturnData([]byte{byte(tx.UnixTime() % 256)})
		return nil
	}}
	intruder := &mockProgram{name: "intruder", ProcessFn: func(_ context.Context, tx *Txn, data []byte) error {
		return tx.WriteAccount(addr, data)
	}}
	require.NoError(t, l.Register(owner))
	require.NoError(t, l.Register(intruder))

	ix := signNext(t, l, owner.ID(), []byte("v1"), key)
	receipt, err := l.Submit(ctx, ix)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), receipt.Time)
	assert.Equal(t, []byte{byte(clock.Now().Unix() % 256)}, receipt.ReturnData)

	ix = signNext(t, l, owner.ID(), []byte("v2"), key)
	_, err = l.Submit(ctx, ix)
	require.NoError(t, err)

	ix = signNext(t, l, intruder.ID(), []byte("evil"), key)
	_, err = l.Submit(ctx, ix)
	assert.ErrorIs(t, err, ErrIllegalOwner)

	acct, err := l.Account(addr)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), acct.Data)
	assert.Equal(t, owner.ID(), acct.Owner)

	owned, err := l.AccountsByOwner(owner.ID())
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, addr, owned[0].Address)
}

func TestSubmitErrors(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	key, _ := newKey(t)

	_, err := l.Submit(ctx, nil)
	assert.ErrorIs(t, err, ErrNilParam)

	ix := signNext(t, l, ProgramID("missing"), nil, key)
	_, err = l.Submit(ctx, ix)
	assert.ErrorIs(t, err, ErrUnknownProgram)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = l.Submit(cancelled, ix)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubmitRejectsReplay(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	key, caller := newKey(t)

	var runs int
	prog := &mockProgram{name: "counter", ProcessFn: func(_ context.Context, _ *Txn, data []byte) error {
		if len(data) > 0 && data[0] == 0xFF {
			return ErrIllegalOwner
		}
		runs++
		return nil
	}}
	require.NoError(t, l.Register(prog))

	first := signNext(t, l, prog.ID(), []byte{1}, key)
	_, err := l.Submit(ctx, first)
	require.NoError(t, err)
	second := signNext(t, l, prog.ID(), []byte{2}, key)
	_, err = l.Submit(ctx, second)
	require.NoError(t, err)

	// Resubmitting captured bytes is refused.
	_, err = l.Submit(ctx, first)
	assert.ErrorIs(t, err, ErrStaleNonce)
	_, err = l.Submit(ctx, second)
	assert.ErrorIs(t, err, ErrStaleNonce)
	assert.Equal(t, 2, runs)

	// A nonce from the future is refused too.
	ahead, err := SignInstruction(prog.ID(), 10, []byte{3}, key)
	require.NoError(t, err)
	_, err = l.Submit(ctx, ahead)
	assert.ErrorIs(t, err, ErrStaleNonce)

	// A failed instruction still consumes its nonce.
	failing := signNext(t, l, prog.ID(), []byte{0xFF}, key)
	_, err = l.Submit(ctx, failing)
	require.ErrorIs(t, err, ErrIllegalOwner)
	n, err := l.Nonce(caller)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	_, err = l.Submit(ctx, failing)
	assert.ErrorIs(t, err, ErrStaleNonce)
}

func TestSubmitNoncePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	key, caller := newKey(t)
	prog := &mockProgram{name: "noop", ProcessFn: func(context.Context, *Txn, []byte) error { return nil }}

	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	l, _ := newTestLedger(t, store)
	require.NoError(t, l.Register(prog))
	ix := signNext(t, l, prog.ID(), nil, key)
	_, err = l.Submit(ctx, ix)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer store.Close()
	l, _ = newTestLedger(t, store)
	require.NoError(t, l.Register(prog))
	n, err := l.Nonce(caller)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	_, err = l.Submit(ctx, ix)
	assert.ErrorIs(t, err, ErrStaleNonce)
}

func TestAfterCommit(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	key, _ := newKey(t)

	var committed []byte
	prog := &mockProgram{name: "hooks", ProcessFn: func(_ context.Context, tx *Txn, data []byte) error {
		tx.AfterCommit(func() { committed = append(committed, data[0]) })
		if data[0] == 0 {
			return ErrIllegalOwner
		}
		return nil
	}}
	require.NoError(t, l.Register(prog))

	_, err := l.Submit(ctx, signNext(t, l, prog.ID(), []byte{0}, key))
	require.Error(t, err)
	assert.Empty(t, committed)

	_, err = l.Submit(ctx, signNext(t, l, prog.ID(), []byte{1}, key))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, committed)
}

func TestAirdropOverflow(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, NewMemStore())
	_, addr := newKey(t)
	require.NoError(t, l.Airdrop(ctx, addr, math.MaxUint64))
	assert.ErrorIs(t, l.Airdrop(ctx, addr, 1), ErrBalanceOverflow)
}

func TestUnixTimeClampsBeforeEpoch(t *testing.T) {
	tx := &Txn{now: time.Unix(-5, 0)}
	assert.Equal(t, uint64(0), tx.UnixTime())
	tx = &Txn{now: time.Unix(86400, 0)}
	assert.Equal(t, uint64(86400), tx.UnixTime())
}
