package vesting

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bitfsorg/vestledger-go/ledger"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// Ledger is the subset of *ledger.Ledger the client needs.
type Ledger interface {
	Submit(ctx context.Context, ix *ledger.SignedInstruction) (*ledger.Receipt, error)
	Account(addr ledger.Address) (*ledger.Account, error)
	AccountsByOwner(program ledger.Address) ([]*ledger.Account, error)
	Balance(addr ledger.Address) (uint64, error)
	Nonce(addr ledger.Address) (uint64, error)
	Now() time.Time
}

type ClientConfig struct {
	Logger    *slog.Logger
	Ledger    Ledger
	ProgramID ledger.Address
}

func (cfg *ClientConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	return nil
}

// Client builds, signs and submits vesting instructions and reads program
// accounts.
type Client struct {
	log *slog.Logger
	cfg ClientConfig

	// Held from nonce lookup to submission.
	submitMu sync.Mutex
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{log: cfg.Logger, cfg: cfg}, nil
}

// ScheduleAccount pairs a schedule with its address.
type ScheduleAccount struct {
	Address  ledger.Address
	Schedule *Schedule
}

// VaultInfo is a custody vault record together with its live balance.
type VaultInfo struct {
	Address ledger.Address
	Vault   *Vault
	Balance uint64
}

// NewAccountAddress returns a fresh address for a configuration or schedule.
// The key behind it is discarded.
func NewAccountAddress() (ledger.Address, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return ledger.ZeroAddress, fmt.Errorf("vesting: generate address: %w", err)
	}
	return ledger.AddressFromPublicKey(priv.PubKey()), nil
}

func (c *Client) submit(ctx context.Context, signer *ec.PrivateKey, data []byte, encErr error) (*ledger.Receipt, error) {
	if encErr != nil {
		return nil, encErr
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: signer", ledger.ErrNilParam)
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	nonce, err := c.cfg.Ledger.Nonce(ledger.AddressFromPublicKey(signer.PubKey()))
	if err != nil {
		return nil, err
	}
	ix, err := ledger.SignInstruction(c.cfg.ProgramID, nonce, data, signer)
	if err != nil {
		return nil, err
	}
	return c.cfg.Ledger.Submit(ctx, ix)
}

// Initialize creates a configuration at config with the signer as authority.
func (c *Client) Initialize(ctx context.Context, authority *ec.PrivateKey, config, feeDestination ledger.Address, creationFee uint64) (*ledger.Receipt, error) {
	data, err := EncodeInitialize(InitializeArgs{Config: config, FeeDestination: feeDestination, CreationFee: creationFee})
	return c.submit(ctx, authority, data, err)
}

// CreateSchedule locks params.TotalAmount from the grantor in a new vault
// and records the schedule at schedule.
func (c *Client) CreateSchedule(ctx context.Context, grantor *ec.PrivateKey, config, schedule ledger.Address, params ScheduleParams) (*ledger.Receipt, error) {
	data, err := EncodeCreateSchedule(CreateScheduleArgs{Config: config, Schedule: schedule, Params: params})
	return c.submit(ctx, grantor, data, err)
}

// Claim releases everything currently claimable and returns the amount paid.
func (c *Client) Claim(ctx context.Context, beneficiary *ec.PrivateKey, schedule ledger.Address) (uint64, error) {
	data, err := EncodeClaim(ClaimArgs{Schedule: schedule})
	receipt, err := c.submit(ctx, beneficiary, data, err)
	if err != nil {
		return 0, err
	}
	if len(receipt.ReturnData) != 8 {
		return 0, fmt.Errorf("vesting: unexpected claim return data of %d bytes", len(receipt.ReturnData))
	}
	amount := binary.LittleEndian.Uint64(receipt.ReturnData)
	c.log.Debug("vesting/client: claim committed", "schedule", schedule, "amount", amount, "receipt", receipt.ID)
	return amount, nil
}

// UpdateCreationFee sets the fee for future schedules.
func (c *Client) UpdateCreationFee(ctx context.Context, authority *ec.PrivateKey, config ledger.Address, fee uint64) (*ledger.Receipt, error) {
	data, err := EncodeUpdateCreationFee(UpdateCreationFeeArgs{Config: config, NewFee: fee})
	return c.submit(ctx, authority, data, err)
}

// UpdateFeeDestination sets where future creation fees are paid.
func (c *Client) UpdateFeeDestination(ctx context.Context, authority *ec.PrivateKey, config, destination ledger.Address) (*ledger.Receipt, error) {
	data, err := EncodeUpdateFeeDestination(UpdateFeeDestinationArgs{Config: config, NewDestination: destination})
	return c.submit(ctx, authority, data, err)
}

// TransferAuthority hands the configuration to newAuthority.
func (c *Client) TransferAuthority(ctx context.Context, authority *ec.PrivateKey, config, newAuthority ledger.Address) (*ledger.Receipt, error) {
	data, err := EncodeTransferAuthority(TransferAuthorityArgs{Config: config, NewAuthority: newAuthority})
	return c.submit(ctx, authority, data, err)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (c *Client) ownedData(addr ledger.Address) ([]byte, error) {
	acct, err := c.cfg.Ledger.Account(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	if acct.Owner != c.cfg.ProgramID {
		return nil, fmt.Errorf("%w: %s is not a vesting account", ErrAccountDiscriminator, addr)
	}
	return acct.Data, nil
}

// Config reads a configuration.
func (c *Client) Config(addr ledger.Address) (*GlobalConfig, error) {
	data, err := c.ownedData(addr)
	if err != nil {
		return nil, err
	}
	return DecodeGlobalConfig(data)
}

// Schedule reads a schedule.
func (c *Client) Schedule(addr ledger.Address) (*Schedule, error) {
	data, err := c.ownedData(addr)
	if err != nil {
		return nil, err
	}
	return DecodeSchedule(data)
}

// Vault reads the custody vault of a schedule.
func (c *Client) Vault(schedule ledger.Address) (*VaultInfo, error) {
	sched, err := c.Schedule(schedule)
	if err != nil {
		return nil, err
	}
	data, err := c.ownedData(sched.Vault)
	if err != nil {
		return nil, err
	}
	v, err := DecodeVault(data)
	if err != nil {
		return nil, err
	}
	bal, err := c.cfg.Ledger.Balance(sched.Vault)
	if err != nil {
		return nil, err
	}
	return &VaultInfo{Address: sched.Vault, Vault: v, Balance: bal}, nil
}

// Claimable previews what a claim would pay at the current ledger time.
func (c *Client) Claimable(schedule ledger.Address) (uint64, error) {
	sched, err := c.Schedule(schedule)
	if err != nil {
		return 0, err
	}
	now := c.cfg.Ledger.Now().Unix()
	if now < 0 {
		now = 0
	}
	return sched.Claimable(uint64(now))
}

// Schedules returns every schedule that satisfies keep.
func (c *Client) Schedules(keep func(*Schedule) bool) ([]ScheduleAccount, error) {
	accts, err := c.cfg.Ledger.AccountsByOwner(c.cfg.ProgramID)
	if err != nil {
		return nil, err
	}
	var out []ScheduleAccount
	for _, a := range accts {
		sched, err := DecodeSchedule(a.Data)
		if err != nil {
			// Configs and vaults share the owner.
			continue
		}
		if keep == nil || keep(sched) {
			out = append(out, ScheduleAccount{Address: a.Address, Schedule: sched})
		}
	}
	return out, nil
}

// SchedulesByBeneficiary returns every schedule paying beneficiary.
func (c *Client) SchedulesByBeneficiary(beneficiary ledger.Address) ([]ScheduleAccount, error) {
	return c.Schedules(func(s *Schedule) bool { return s.Beneficiary == beneficiary })
}

// SchedulesByGrantor returns every schedule funded by grantor.
func (c *Client) SchedulesByGrantor(grantor ledger.Address) ([]ScheduleAccount, error) {
	return c.Schedules(func(s *Schedule) bool { return s.Grantor == grantor })
}
