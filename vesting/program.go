// Package vesting implements a linear, periodic fund-vesting program for the
// ledger. A grantor locks a total amount in a custody vault derived from the
// schedule's address; the beneficiary claims whole periods as they elapse.
package vesting

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bitfsorg/vestledger-go/ledger"
	"github.com/bitfsorg/vestledger-go/metrics"
)

// DefaultProgramName is the name the program registers under unless
// configured otherwise.
const DefaultProgramName = "vesting"

type ProgramConfig struct {
	Logger *slog.Logger
	Name   string
}

func (cfg *ProgramConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultProgramName
	}
	return nil
}

// Program is the vesting program. It holds no state of its own; everything
// lives in ledger accounts it owns.
type Program struct {
	log  *slog.Logger
	name string
	id   ledger.Address
}

// Compile-time interface check.
var _ ledger.Program = (*Program)(nil)

func NewProgram(cfg ProgramConfig) (*Program, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Program{
		log:  cfg.Logger,
		name: cfg.Name,
		id:   ledger.ProgramID(cfg.Name),
	}, nil
}

func (p *Program) ID() ledger.Address { return p.id }
func (p *Program) Name() string       { return p.name }

// Process dispatches on the instruction discriminator.
func (p *Program) Process(_ context.Context, tx *ledger.Txn, data []byte) error {
	if len(data) < DiscriminatorLen {
		return fmt.Errorf("%w: %d bytes", ErrInvalidInstruction, len(data))
	}
	var d Discriminator
	copy(d[:], data)
	body := data[DiscriminatorLen:]

	switch d {
	case initializeDiscriminator:
		var args InitializeArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		return p.initialize(tx, args)

	case createScheduleDiscriminator:
		var args CreateScheduleArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		return p.createSchedule(tx, args)

	case claimDiscriminator:
		var args ClaimArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		if err := p.claim(tx, args); err != nil {
			metrics.ClaimsTotal.WithLabelValues("error").Inc()
			return err
		}
		return nil

	case updateCreationFeeDiscriminator:
		var args UpdateCreationFeeArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		return p.updateCreationFee(tx, args)

	case updateFeeDestinationDiscriminator:
		var args UpdateFeeDestinationArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		return p.updateFeeDestination(tx, args)

	case transferAuthorityDiscriminator:
		var args TransferAuthorityArgs
		if err := decodeArgs(body, &args); err != nil {
			return err
		}
		return p.transferAuthority(tx, args)

	default:
		return fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstruction, d[:])
	}
}

// ---------------------------------------------------------------------------
// Global configuration
// ---------------------------------------------------------------------------

func (p *Program) initialize(tx *ledger.Txn, args InitializeArgs) error {
	if args.CreationFee == 0 {
		return fmt.Errorf("%w: creation fee must be positive", ErrInvalidAmount)
	}
	if args.FeeDestination.IsZero() {
		return fmt.Errorf("%w: fee destination", ErrZeroAddress)
	}
	if args.Config.IsZero() {
		return fmt.Errorf("%w: config", ErrZeroAddress)
	}

	cfg := &GlobalConfig{
		Authority:      tx.Caller(),
		FeeDestination: args.FeeDestination,
		CreationFee:    args.CreationFee,
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := tx.CreateAccount(args.Config, data); err != nil {
		return ledgerError(err)
	}

	p.log.Info("vesting: config initialized",
		"config", args.Config, "authority", cfg.Authority, "fee", cfg.CreationFee)
	return nil
}

func (p *Program) updateCreationFee(tx *ledger.Txn, args UpdateCreationFeeArgs) error {
	cfg, err := p.authorize(tx, args.Config)
	if err != nil {
		return err
	}
	// Zero is accepted here even though Initialize rejects it.
	cfg.CreationFee = args.NewFee
	if err := p.storeConfig(tx, args.Config, cfg); err != nil {
		return err
	}
	p.log.Info("vesting: creation fee updated", "config", args.Config, "fee", args.NewFee)
	return nil
}

func (p *Program) updateFeeDestination(tx *ledger.Txn, args UpdateFeeDestinationArgs) error {
	cfg, err := p.authorize(tx, args.Config)
	if err != nil {
		return err
	}
	if args.NewDestination.IsZero() {
		return fmt.Errorf("%w: fee destination", ErrZeroAddress)
	}
	cfg.FeeDestination = args.NewDestination
	if err := p.storeConfig(tx, args.Config, cfg); err != nil {
		return err
	}
	p.log.Info("vesting: fee destination updated", "config", args.Config, "destination", args.NewDestination)
	return nil
}

func (p *Program) transferAuthority(tx *ledger.Txn, args TransferAuthorityArgs) error {
	cfg, err := p.authorize(tx, args.Config)
	if err != nil {
		return err
	}
	if args.NewAuthority.IsZero() {
		return fmt.Errorf("%w: authority", ErrZeroAddress)
	}
	prev := cfg.Authority
	cfg.Authority = args.NewAuthority
	if err := p.storeConfig(tx, args.Config, cfg); err != nil {
		return err
	}
	p.log.Info("vesting: authority transferred", "config", args.Config, "from", prev, "to", args.NewAuthority)
	return nil
}

func (p *Program) authorize(tx *ledger.Txn, addr ledger.Address) (*GlobalConfig, error) {
	cfg, err := p.loadConfig(tx, addr)
	if err != nil {
		return nil, err
	}
	if cfg.Authority != tx.Caller() {
		return nil, fmt.Errorf("%w: %s is not the authority of %s", ErrUnauthorized, tx.Caller(), addr)
	}
	return cfg, nil
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

func (p *Program) createSchedule(tx *ledger.Txn, args CreateScheduleArgs) error {
	if args.Schedule.IsZero() {
		return fmt.Errorf("%w: schedule", ErrZeroAddress)
	}
	cfg, err := p.loadConfig(tx, args.Config)
	if err != nil {
		return err
	}

	params := args.Params
	if err := params.Validate(tx.UnixTime()); err != nil {
		return err
	}

	grantor := tx.Caller()
	required, err := addChecked(cfg.CreationFee, params.TotalAmount)
	if err != nil {
		return err
	}
	if bal := tx.Balance(grantor); bal < required {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, grantor, bal, required)
	}

	vaultAddr, bump, err := FindVaultAddress(p.id, args.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVault, err)
	}

	if cfg.CreationFee > 0 {
		if err := tx.Transfer(grantor, cfg.FeeDestination, cfg.CreationFee); err != nil {
			return ledgerError(err)
		}
	}

	sched := &Schedule{
		Config:          args.Config,
		Grantor:         grantor,
		Beneficiary:     params.Beneficiary,
		TotalAmount:     params.TotalAmount,
		StartTime:       params.StartTime,
		EndTime:         params.EndTime,
		PeriodCount:     params.PeriodCount,
		PeriodDuration:  params.PeriodDuration,
		AmountPerPeriod: params.AmountPerPeriod,
		Vault:           vaultAddr,
	}
	if err := p.createRecord(tx, args.Schedule, sched); err != nil {
		return err
	}
	if err := p.createRecord(tx, vaultAddr, &Vault{Schedule: args.Schedule, Bump: bump}); err != nil {
		return err
	}
	if err := tx.Transfer(grantor, vaultAddr, params.TotalAmount); err != nil {
		return ledgerError(err)
	}

	fee := cfg.CreationFee
	tx.AfterCommit(func() {
		metrics.SchedulesCreatedTotal.Inc()
		metrics.FeesCollectedTotal.Add(float64(fee))
	})
	p.log.Info("vesting: schedule created",
		"schedule", args.Schedule,
		"beneficiary", params.Beneficiary,
		"total", params.TotalAmount,
		"periods", params.PeriodCount,
		"vault", vaultAddr)
	return nil
}

func (p *Program) claim(tx *ledger.Txn, args ClaimArgs) error {
	sched, err := p.loadSchedule(tx, args.Schedule)
	if err != nil {
		return err
	}
	if tx.Caller() != sched.Beneficiary {
		return fmt.Errorf("%w: %s is not the beneficiary of %s", ErrUnauthorized, tx.Caller(), args.Schedule)
	}

	now := tx.UnixTime()
	if now < sched.StartTime {
		return fmt.Errorf("%w: schedule starts at %d, now %d", errNotStarted, sched.StartTime, now)
	}
	amount, err := sched.Claimable(now)
	if err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: nothing claimable", errNothingClaimable)
	}

	vault, err := p.loadVault(tx, sched.Vault)
	if err != nil {
		return err
	}
	if err := release(tx, args.Schedule, vault, sched.Vault, sched.Beneficiary, amount); err != nil {
		return err
	}

	sched.ClaimedAmount, err = addChecked(sched.ClaimedAmount, amount)
	if err != nil {
		return err
	}
	data, err := sched.Encode()
	if err != nil {
		return err
	}
	if err := tx.WriteAccount(args.Schedule, data); err != nil {
		return ledgerError(err)
	}

	tx.SetReturnData(binary.LittleEndian.AppendUint64(nil, amount))
	tx.AfterCommit(func() {
		metrics.ClaimsTotal.WithLabelValues("ok").Inc()
		metrics.ReleasedAmountTotal.Add(float64(amount))
	})
	p.log.Info("vesting: claimed",
		"schedule", args.Schedule, "amount", amount, "claimed", sched.ClaimedAmount, "total", sched.TotalAmount)
	return nil
}

// ---------------------------------------------------------------------------
// Account access
// ---------------------------------------------------------------------------

type record interface {
	Encode() ([]byte, error)
}

func (p *Program) createRecord(tx *ledger.Txn, addr ledger.Address, r record) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	if err := tx.CreateAccount(addr, data); err != nil {
		return ledgerError(err)
	}
	return nil
}

func (p *Program) storeConfig(tx *ledger.Txn, addr ledger.Address, cfg *GlobalConfig) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := tx.WriteAccount(addr, data); err != nil {
		return ledgerError(err)
	}
	return nil
}

func (p *Program) ownedData(tx *ledger.Txn, addr ledger.Address) ([]byte, error) {
	acct, err := tx.Account(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	if acct.Owner != p.id {
		return nil, fmt.Errorf("%w: %s is not owned by %s", ErrAccountDiscriminator, addr, p.name)
	}
	return acct.Data, nil
}

func (p *Program) loadConfig(tx *ledger.Txn, addr ledger.Address) (*GlobalConfig, error) {
	data, err := p.ownedData(tx, addr)
	if err != nil {
		return nil, err
	}
	return DecodeGlobalConfig(data)
}

func (p *Program) loadSchedule(tx *ledger.Txn, addr ledger.Address) (*Schedule, error) {
	data, err := p.ownedData(tx, addr)
	if err != nil {
		return nil, err
	}
	return DecodeSchedule(data)
}

func (p *Program) loadVault(tx *ledger.Txn, addr ledger.Address) (*Vault, error) {
	data, err := p.ownedData(tx, addr)
	if err != nil {
		return nil, err
	}
	return DecodeVault(data)
}
