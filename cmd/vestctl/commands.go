package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bitfsorg/vestledger-go/config"
	"github.com/bitfsorg/vestledger-go/ledger"
	"github.com/bitfsorg/vestledger-go/vesting"
	"github.com/bitfsorg/vestledger-go/wallet"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// maxParallelClaims bounds the claim --all fan-out.
const maxParallelClaims = 4

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("vestctl "+name, flag.ContinueOnError)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// init / key
// ---------------------------------------------------------------------------

func cmdInit(_ context.Context, g globalFlags, args []string, out io.Writer) error {
	fs := newFlagSet("init")
	words := fs.Int("words", 12, "mnemonic length: 12 or 24")
	mnemonic := fs.String("mnemonic", "", "restore from an existing mnemonic instead of generating one")
	passphrase := fs.String("passphrase", "", "optional BIP39 passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if g.password == "" {
		return errors.New("wallet password required (--password or VESTLEDGER_PASSWORD)")
	}

	cfg, err := resolveConfig(g)
	if err != nil {
		return err
	}
	if err := config.SaveConfig(config.ConfigPath(cfg.DataDir), cfg); err != nil {
		return err
	}

	m := *mnemonic
	if m == "" {
		bits := wallet.Mnemonic12Words
		if *words == 24 {
			bits = wallet.Mnemonic24Words
		} else if *words != 12 {
			return fmt.Errorf("--words must be 12 or 24, got %d", *words)
		}
		if m, err = wallet.GenerateMnemonic(bits); err != nil {
			return err
		}
	}
	seed, err := wallet.SeedFromMnemonic(m, *passphrase)
	if err != nil {
		return err
	}
	if err := wallet.SaveSeed(filepath.Join(cfg.DataDir, wallet.SeedFileName), seed, g.password); err != nil {
		return err
	}
	keyringPath := filepath.Join(cfg.DataDir, wallet.KeyringFileName)
	if _, err := os.Stat(keyringPath); errors.Is(err, os.ErrNotExist) {
		if err := wallet.NewKeyring(keyringPath).Save(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Initialized %s\n", cfg.DataDir)
	if *mnemonic == "" {
		fmt.Fprintf(out, "Mnemonic (write it down):\n%s\n", m)
	}
	return nil
}

func (a *app) cmdKey(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: vestctl key add|list|rename|rm ...")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "add":
		if len(rest) != 1 {
			return errors.New("usage: vestctl key add <name>")
		}
		id, err := a.keyring.Create(rest[0])
		if err != nil {
			return err
		}
		kp, err := a.key(id.Name)
		if err != nil {
			return err
		}
		if err := a.keyring.Save(); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s\t%s\t%s\n", id.Name, kp.Address, kp.Path)
	case "list":
		ids := a.keyring.List()
		if len(ids) == 0 {
			fmt.Fprintln(a.out, "No identities.")
			return nil
		}
		for _, id := range ids {
			kp, err := a.key(id.Name)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\t%s\n", id.Name, kp.Address, kp.Path)
		}
	case "rename":
		if len(rest) != 2 {
			return errors.New("usage: vestctl key rename <old> <new>")
		}
		if err := a.keyring.Rename(rest[0], rest[1]); err != nil {
			return err
		}
		return a.keyring.Save()
	case "rm":
		if len(rest) != 1 {
			return errors.New("usage: vestctl key rm <name>")
		}
		if err := a.keyring.Delete(rest[0]); err != nil {
			return err
		}
		return a.keyring.Save()
	default:
		return fmt.Errorf("unknown key command %q", sub)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Funds
// ---------------------------------------------------------------------------

func (a *app) cmdAirdrop(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: vestctl airdrop <who> <amount>")
	}
	to, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	if err := a.ledger.Airdrop(ctx, to, amount); err != nil {
		return err
	}
	bal, err := a.ledger.Balance(to)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s balance %d\n", to, bal)
	return nil
}

func (a *app) cmdBalance(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: vestctl balance <who>")
	}
	addr, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	bal, err := a.ledger.Balance(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d\n", bal)
	return nil
}

// ---------------------------------------------------------------------------
// Configuration administration
// ---------------------------------------------------------------------------

func (a *app) cmdInitialize(ctx context.Context, args []string) error {
	fs := newFlagSet("initialize")
	authority := fs.String("authority", "", "identity that signs and becomes the authority")
	fee := fs.Uint64("fee", 0, "creation fee charged per schedule (must be positive)")
	dest := fs.String("fee-destination", "", "identity or address receiving creation fees")
	configAddr := fs.String("config", "", "configuration address (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := a.key(*authority)
	if err != nil {
		return err
	}
	feeDest, err := a.resolve(*dest)
	if err != nil {
		return err
	}
	cfgAddr, err := a.newOrParse(*configAddr)
	if err != nil {
		return err
	}
	if _, err := a.client.Initialize(ctx, kp.PrivateKey, cfgAddr, feeDest, *fee); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "config %s\n", cfgAddr)
	return nil
}

// adminFlags parses the flags shared by the authority-only commands.
func (a *app) adminFlags(name string, args []string, extra func(fs *flag.FlagSet)) (ledger.Address, *wallet.KeyPair, error) {
	fs := newFlagSet(name)
	authority := fs.String("authority", "", "current authority identity")
	configAddr := fs.String("config", "", "configuration address")
	extra(fs)
	if err := fs.Parse(args); err != nil {
		return ledger.ZeroAddress, nil, err
	}
	kp, err := a.key(*authority)
	if err != nil {
		return ledger.ZeroAddress, nil, err
	}
	addr, err := ledger.ParseAddress(*configAddr)
	if err != nil {
		return ledger.ZeroAddress, nil, fmt.Errorf("--config: %w", err)
	}
	return addr, kp, nil
}

func (a *app) cmdUpdateFee(ctx context.Context, args []string) error {
	var fee uint64
	cfgAddr, key, err := a.adminFlags("update-fee", args, func(fs *flag.FlagSet) {
		fs.Uint64Var(&fee, "fee", 0, "new creation fee")
	})
	if err != nil {
		return err
	}
	if _, err := a.client.UpdateCreationFee(ctx, key.PrivateKey, cfgAddr, fee); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "creation fee %d\n", fee)
	return nil
}

func (a *app) cmdUpdateFeeDestination(ctx context.Context, args []string) error {
	var dest string
	cfgAddr, key, err := a.adminFlags("update-fee-destination", args, func(fs *flag.FlagSet) {
		fs.StringVar(&dest, "destination", "", "identity or address receiving creation fees")
	})
	if err != nil {
		return err
	}
	addr, err := a.resolve(dest)
	if err != nil {
		return err
	}
	if _, err := a.client.UpdateFeeDestination(ctx, key.PrivateKey, cfgAddr, addr); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "fee destination %s\n", addr)
	return nil
}

func (a *app) cmdTransferAuthority(ctx context.Context, args []string) error {
	var next string
	cfgAddr, key, err := a.adminFlags("transfer-authority", args, func(fs *flag.FlagSet) {
		fs.StringVar(&next, "new-authority", "", "identity or address of the new authority")
	})
	if err != nil {
		return err
	}
	addr, err := a.resolve(next)
	if err != nil {
		return err
	}
	if _, err := a.client.TransferAuthority(ctx, key.PrivateKey, cfgAddr, addr); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "authority %s\n", addr)
	return nil
}

// ---------------------------------------------------------------------------
// Schedules
// ---------------------------------------------------------------------------

func (a *app) cmdCreate(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	grantor := fs.String("grantor", "", "identity funding the schedule")
	configAddr := fs.String("config", "", "configuration address")
	beneficiary := fs.String("beneficiary", "", "identity or address receiving the funds")
	total := fs.Uint64("total", 0, "total amount locked")
	start := fs.String("start", "now", "start time: now, now+<duration>, unix seconds or RFC3339")
	end := fs.String("end", "", "end time, defaults to start + periods * period-duration")
	periods := fs.Uint64("periods", 0, "number of periods")
	duration := fs.String("period-duration", "", "period length as a duration (24h) or seconds")
	perPeriod := fs.Uint64("amount-per-period", 0, "amount unlocked per period, defaults to total / periods")
	scheduleAddr := fs.String("schedule", "", "schedule address (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kp, err := a.key(*grantor)
	if err != nil {
		return err
	}
	cfgAddr, err := ledger.ParseAddress(*configAddr)
	if err != nil {
		return fmt.Errorf("--config: %w", err)
	}
	benef, err := a.resolve(*beneficiary)
	if err != nil {
		return err
	}
	now := a.ledger.Now()
	startAt, err := parseTime(*start, now)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	var periodSecs uint64
	if *duration != "" {
		if periodSecs, err = parseSeconds(*duration); err != nil {
			return fmt.Errorf("--period-duration: %w", err)
		}
	}
	params := vesting.ScheduleParams{
		Beneficiary:     benef,
		TotalAmount:     *total,
		StartTime:       unixSeconds(startAt),
		PeriodCount:     *periods,
		PeriodDuration:  periodSecs,
		AmountPerPeriod: *perPeriod,
	}
	if params.AmountPerPeriod == 0 && params.PeriodCount > 0 {
		params.AmountPerPeriod = params.TotalAmount / params.PeriodCount
	}
	if *end != "" {
		endAt, err := parseTime(*end, now)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		params.EndTime = unixSeconds(endAt)
	} else if params.EndTime, err = params.NominalEnd(); err != nil {
		return fmt.Errorf("default --end: %w", err)
	}

	schedAddr, err := a.newOrParse(*scheduleAddr)
	if err != nil {
		return err
	}
	if _, err := a.client.CreateSchedule(ctx, kp.PrivateKey, cfgAddr, schedAddr, params); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "schedule %s\n", schedAddr)
	return nil
}

type claimResult struct {
	schedule ledger.Address
	amount   uint64
	skipped  error
}

func (a *app) cmdClaim(ctx context.Context, args []string) error {
	fs := newFlagSet("claim")
	beneficiary := fs.String("beneficiary", "", "beneficiary identity")
	scheduleAddr := fs.String("schedule", "", "schedule address")
	all := fs.Bool("all", false, "claim from every schedule paying the beneficiary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kp, err := a.key(*beneficiary)
	if err != nil {
		return err
	}

	if !*all {
		addr, err := ledger.ParseAddress(*scheduleAddr)
		if err != nil {
			return fmt.Errorf("--schedule: %w", err)
		}
		amount, err := a.client.Claim(ctx, kp.PrivateKey, addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "claimed %d\n", amount)
		return nil
	}

	scheds, err := a.client.SchedulesByBeneficiary(kp.Address)
	if err != nil {
		return err
	}
	var (
		mu      sync.Mutex
		results []claimResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelClaims)
	for _, s := range scheds {
		s := s
		g.Go(func() error {
			amount, err := a.client.Claim(gctx, kp.PrivateKey, s.Address)
			res := claimResult{schedule: s.Address, amount: amount}
			switch {
			case errors.Is(err, vesting.ErrInvalidAmount), errors.Is(err, vesting.ErrInvalidStartTimestamp):
				res.skipped = err
			case err != nil:
				return fmt.Errorf("claim %s: %w", s.Address, err)
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var total uint64
	for _, r := range results {
		if r.skipped != nil {
			fmt.Fprintf(a.out, "%s\tskipped: %v\n", r.schedule, r.skipped)
			continue
		}
		total += r.amount
		fmt.Fprintf(a.out, "%s\tclaimed %d\n", r.schedule, r.amount)
	}
	fmt.Fprintf(a.out, "total claimed %d\n", total)
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (a *app) cmdShowConfig(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: vestctl show-config <address>")
	}
	addr, err := ledger.ParseAddress(args[0])
	if err != nil {
		return err
	}
	cfg, err := a.client.Config(addr)
	if err != nil {
		return err
	}
	return writeJSON(a.out, cfg)
}

type scheduleView struct {
	Address   ledger.Address    `json:"address"`
	Schedule  *vesting.Schedule `json:"schedule"`
	Claimable uint64            `json:"claimable"`
	Vault     ledger.Address    `json:"vault"`
	VaultBump uint8             `json:"vault_bump"`
	Locked    uint64            `json:"locked"`
}

func (a *app) cmdShowSchedule(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: vestctl show-schedule <address>")
	}
	addr, err := ledger.ParseAddress(args[0])
	if err != nil {
		return err
	}
	sched, err := a.client.Schedule(addr)
	if err != nil {
		return err
	}
	claimable, err := a.client.Claimable(addr)
	if err != nil {
		return err
	}
	vault, err := a.client.Vault(addr)
	if err != nil {
		return err
	}
	return writeJSON(a.out, scheduleView{
		Address:   addr,
		Schedule:  sched,
		Claimable: claimable,
		Vault:     vault.Address,
		VaultBump: vault.Vault.Bump,
		Locked:    vault.Balance,
	})
}

func (a *app) cmdList(args []string) error {
	fs := newFlagSet("list")
	beneficiary := fs.String("beneficiary", "", "list schedules paying this identity or address")
	grantor := fs.String("grantor", "", "list schedules funded by this identity or address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		scheds []vesting.ScheduleAccount
		err    error
	)
	switch {
	case *beneficiary != "" && *grantor != "":
		return errors.New("--beneficiary and --grantor are mutually exclusive")
	case *beneficiary != "":
		addr, rerr := a.resolve(*beneficiary)
		if rerr != nil {
			return rerr
		}
		scheds, err = a.client.SchedulesByBeneficiary(addr)
	case *grantor != "":
		addr, rerr := a.resolve(*grantor)
		if rerr != nil {
			return rerr
		}
		scheds, err = a.client.SchedulesByGrantor(addr)
	default:
		scheds, err = a.client.Schedules(nil)
	}
	if err != nil {
		return err
	}
	if len(scheds) == 0 {
		fmt.Fprintln(a.out, "No schedules.")
		return nil
	}
	for _, s := range scheds {
		fmt.Fprintf(a.out, "%s\t%d/%d claimed\t%d periods of %ds\n",
			s.Address, s.Schedule.ClaimedAmount, s.Schedule.TotalAmount,
			s.Schedule.PeriodCount, s.Schedule.PeriodDuration)
	}
	return nil
}

func (a *app) newOrParse(s string) (ledger.Address, error) {
	if strings.TrimSpace(s) == "" {
		return vesting.NewAccountAddress()
	}
	return ledger.ParseAddress(s)
}
