package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bitfsorg/vestledger-go/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Program is on-ledger logic addressed by its id. Process runs inside a
// single store transaction.
type Program interface {
	ID() Address
	Name() string
	Process(ctx context.Context, tx *Txn, data []byte) error
}

// Receipt describes a committed instruction.
type Receipt struct {
	ID         uuid.UUID
	ProgramID  Address
	Signers    []Address
	Time       time.Time
	ReturnData []byte
}

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Store  Store
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Ledger executes signed instructions against registered programs, one at a
// time.
type Ledger struct {
	log *slog.Logger
	cfg Config

	mu       sync.RWMutex
	programs map[Address]Program
}

func New(cfg Config) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		log:      cfg.Logger,
		cfg:      cfg,
		programs: make(map[Address]Program),
	}, nil
}

// Register makes p callable by its id.
func (l *Ledger) Register(p Program) error {
	if p == nil {
		return fmt.Errorf("%w: program", ErrNilParam)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.programs[p.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrProgramExists, p.Name())
	}
	l.programs[p.ID()] = p
	l.log.Debug("ledger: registered program", "name", p.Name(), "id", p.ID())
	return nil
}

// Now returns the current ledger time.
func (l *Ledger) Now() time.Time { return l.cfg.Clock.Now() }

// Submit verifies the instruction's signatures and runs it. Either every
// effect of the program commits or none does. The caller's nonce is consumed
// even when the program fails, so a signed instruction is never run twice.
func (l *Ledger) Submit(ctx context.Context, ix *SignedInstruction) (*Receipt, error) {
	if ix == nil {
		return nil, fmt.Errorf("%w: instruction", ErrNilParam)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ix.Verify(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	p, ok := l.programs[ix.ProgramID]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}

	caller := ix.Signers[0]
	start := time.Now()
	var (
		txn        *Txn
		nonceStale bool
	)
	err := l.cfg.Store.Update(func(tx Tx) error {
		if err := useNonce(tx, caller, ix.Nonce); err != nil {
			nonceStale = true
			return err
		}
		txn = &Txn{
			tx:      tx,
			program: p.ID(),
			signers: ix.Signers,
			now:     l.cfg.Clock.Now(),
		}
		return p.Process(ctx, txn, ix.Data)
	})
	if err != nil && !nonceStale {
		// The program's effects are gone; burn the nonce on its own.
		if nerr := l.cfg.Store.Update(func(tx Tx) error {
			return useNonce(tx, caller, ix.Nonce)
		}); nerr != nil {
			l.log.Warn("ledger: failed to consume nonce", "caller", caller, "nonce", ix.Nonce, "error", nerr)
		}
	}
	metrics.InstructionDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.InstructionsTotal.WithLabelValues(p.Name(), "error").Inc()
		l.log.Debug("ledger: instruction rejected", "program", p.Name(), "caller", caller, "error", err)
		return nil, err
	}
	metrics.InstructionsTotal.WithLabelValues(p.Name(), "ok").Inc()
	for _, fn := range txn.afterCommit {
		fn()
	}

	receipt := &Receipt{
		ID:         uuid.New(),
		ProgramID:  p.ID(),
		Signers:    ix.Signers,
		Time:       txn.now,
		ReturnData: txn.returnData,
	}
	l.log.Debug("ledger: instruction committed", "program", p.Name(), "receipt", receipt.ID, "caller", caller)
	return receipt, nil
}

// Airdrop credits amount to addr out of thin air. It exists for local
// networks and tests.
func (l *Ledger) Airdrop(ctx context.Context, to Address, amount uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.cfg.Store.Update(func(tx Tx) error {
		return credit(tx, to, amount)
	}); err != nil {
		return err
	}
	l.log.Debug("ledger: airdrop", "to", to, "amount", amount)
	return nil
}

// Balance returns the balance held at addr.
func (l *Ledger) Balance(addr Address) (uint64, error) {
	var bal uint64
	err := l.cfg.Store.View(func(tx Tx) error {
		bal = readBalance(tx, addr)
		return nil
	})
	return bal, err
}

// Nonce returns the next sequence number addr must sign with.
func (l *Ledger) Nonce(addr Address) (uint64, error) {
	var n uint64
	err := l.cfg.Store.View(func(tx Tx) error {
		n = readNonce(tx, addr)
		return nil
	})
	return n, err
}

// Account returns the account at addr, or ErrAccountNotFound.
func (l *Ledger) Account(addr Address) (*Account, error) {
	var acct *Account
	err := l.cfg.Store.View(func(tx Tx) error {
		var err error
		acct, err = readAccount(tx, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// AccountsByOwner returns every account owned by program, in address order.
func (l *Ledger) AccountsByOwner(program Address) ([]*Account, error) {
	var out []*Account
	err := l.cfg.Store.View(func(tx Tx) error {
		return tx.ForEach(BucketAccounts, func(k, _ []byte) error {
			addr, err := AddressFromBytes(k)
			if err != nil {
				return err
			}
			acct, err := readAccount(tx, addr)
			if err != nil {
				return err
			}
			if acct.Owner == program {
				out = append(out, acct)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
