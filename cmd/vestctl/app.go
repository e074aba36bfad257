package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bitfsorg/vestledger-go/config"
	"github.com/bitfsorg/vestledger-go/ledger"
	"github.com/bitfsorg/vestledger-go/logger"
	"github.com/bitfsorg/vestledger-go/vesting"
	"github.com/bitfsorg/vestledger-go/wallet"
	"github.com/jonboulle/clockwork"
)

type globalFlags struct {
	dataDir     string
	network     string
	logLevel    string
	logFile     string
	password    string
	envFile     string
	metricsFile string
	at          string
}

// resolveConfig layers flags and environment over the config file in the
// selected data directory. A missing config file falls back to defaults.
func resolveConfig(g globalFlags) (config.Config, error) {
	flags := &config.Config{DataDir: g.dataDir, Network: g.network, LogLevel: g.logLevel, LogFile: g.logFile}
	env := config.EnvMap(os.Environ())

	// The data directory decides which config file is read.
	located, err := config.Resolve(config.DefaultConfig(), env, flags)
	if err != nil {
		return config.Config{}, err
	}
	base, err := config.LoadConfig(config.ConfigPath(located.DataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return config.Config{}, err
	}
	base.DataDir = located.DataDir
	return config.Resolve(base, env, flags)
}

type app struct {
	cfg      config.Config
	log      *slog.Logger
	closers  []io.Closer
	ledger   *ledger.Ledger
	client   *vesting.Client
	keyring  *wallet.Keyring
	wallet   *wallet.Wallet
	password string
	out      io.Writer
}

func openApp(g globalFlags, out io.Writer) (*app, error) {
	cfg, err := resolveConfig(g)
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logger.Open(cfg.LogFile, cfg.Level())
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, closers: []io.Closer{logCloser}, password: g.password, out: out}

	clock := clockwork.NewRealClock()
	if g.at != "" {
		t, err := parseTime(g.at, time.Now())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("--at: %w", err)
		}
		clock = clockwork.NewFakeClockAt(t)
	}

	store, err := ledger.OpenBoltStore(cfg.LedgerPath())
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append([]io.Closer{store}, a.closers...)

	if a.ledger, err = ledger.New(ledger.Config{Logger: log, Clock: clock, Store: store}); err != nil {
		a.close()
		return nil, err
	}
	program, err := vesting.NewProgram(vesting.ProgramConfig{Logger: log})
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.ledger.Register(program); err != nil {
		a.close()
		return nil, err
	}
	if a.client, err = vesting.NewClient(vesting.ClientConfig{Logger: log, Ledger: a.ledger, ProgramID: program.ID()}); err != nil {
		a.close()
		return nil, err
	}
	if a.keyring, err = wallet.LoadKeyring(filepath.Join(cfg.DataDir, wallet.KeyringFileName)); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// openWallet decrypts the seed on first use.
func (a *app) openWallet() (*wallet.Wallet, error) {
	if a.wallet != nil {
		return a.wallet, nil
	}
	if a.password == "" {
		return nil, errors.New("wallet password required (--password or VESTLEDGER_PASSWORD)")
	}
	seed, err := wallet.LoadSeed(filepath.Join(a.cfg.DataDir, wallet.SeedFileName), a.password)
	if err != nil {
		return nil, err
	}
	w, err := wallet.NewWallet(seed, a.cfg.Network)
	if err != nil {
		return nil, err
	}
	a.wallet = w
	return w, nil
}

// key returns the signing key of a named identity.
func (a *app) key(name string) (*wallet.KeyPair, error) {
	if name == "" {
		return nil, errors.New("identity name required")
	}
	w, err := a.openWallet()
	if err != nil {
		return nil, err
	}
	return w.Key(a.keyring, name)
}

// resolve accepts an identity name or a base58 address.
func (a *app) resolve(who string) (ledger.Address, error) {
	if who == "" {
		return ledger.ZeroAddress, errors.New("address or identity name required")
	}
	if _, err := a.keyring.Get(who); err == nil {
		kp, err := a.key(who)
		if err != nil {
			return ledger.ZeroAddress, err
		}
		return kp.Address, nil
	}
	addr, err := ledger.ParseAddress(who)
	if err != nil {
		return ledger.ZeroAddress, fmt.Errorf("%q is neither an identity nor an address: %w", who, err)
	}
	return addr, nil
}

// parseTime accepts "now", "now+<duration>", unix seconds or RFC3339.
func parseTime(s string, now time.Time) (time.Time, error) {
	switch {
	case s == "now":
		return now, nil
	case strings.HasPrefix(s, "now+"):
		d, err := time.ParseDuration(strings.TrimPrefix(s, "now+"))
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(d), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

// parseSeconds accepts a Go duration ("24h") or a plain number of seconds.
func parseSeconds(s string) (uint64, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < time.Second {
		return 0, fmt.Errorf("duration %s is shorter than a second", d)
	}
	return uint64(d / time.Second), nil
}

func unixSeconds(t time.Time) uint64 {
	if t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix())
}
