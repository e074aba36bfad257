package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfsorg/vestledger-go/vesting"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
)

const usage = `Usage: vestctl [global flags] <command> [flags] [args]

Commands:
  init                     create the data directory, config and encrypted wallet
  key add|list|rename|rm   manage named identities
  airdrop <who> <amount>   credit funds on the local ledger
  balance <who>            show a balance
  initialize               create a vesting configuration
  create                   create a vesting schedule
  claim                    claim unlocked funds
  update-fee               change the creation fee
  update-fee-destination   change where creation fees are paid
  transfer-authority       hand a configuration to a new authority
  show-config <addr>       print a configuration
  show-schedule <addr>     print a schedule and its vault
  list                     list schedules by beneficiary or grantor

<who> is an identity name from the keyring or a base58 address.

Global flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if code, ok := vesting.CodeOf(err); ok {
			kind, _ := vesting.KindOf(err)
			fmt.Fprintf(os.Stderr, "Error: %v (code %d, %s)\n", err, code, kind)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("vestctl", flag.ContinueOnError)
	fs.SetInterspersed(false)
	var g globalFlags
	fs.StringVar(&g.dataDir, "datadir", "", "data directory (or set VESTLEDGER_DATADIR env var)")
	fs.StringVar(&g.network, "network", "", "network: mainnet, testnet or regtest (or set VESTLEDGER_NETWORK env var)")
	fs.StringVar(&g.logLevel, "loglevel", "", "log level: debug, info, warn or error (or set VESTLEDGER_LOGLEVEL env var)")
	fs.StringVar(&g.logFile, "logfile", "", "log file, stderr when empty (or set VESTLEDGER_LOGFILE env var)")
	fs.StringVar(&g.password, "password", "", "wallet password (or set VESTLEDGER_PASSWORD env var)")
	fs.StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before resolving configuration")
	fs.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file after the command")
	fs.StringVar(&g.at, "at", "", "run the ledger at a fixed time (unix seconds or RFC3339) instead of the wall clock")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	// A missing .env file is not an error.
	if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", g.envFile, err)
	}
	if g.password == "" {
		g.password = os.Getenv("VESTLEDGER_PASSWORD")
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no command given")
	}
	cmd, cmdArgs := rest[0], rest[1:]

	if cmd == "init" {
		return cmdInit(ctx, g, cmdArgs, stdout)
	}

	a, err := openApp(g, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	err = a.dispatch(ctx, cmd, cmdArgs)
	if g.metricsFile != "" {
		// Written even when the command failed so rejections are visible.
		if merr := prometheus.WriteToTextfile(g.metricsFile, prometheus.DefaultGatherer); merr != nil {
			a.log.Warn("failed to write metrics", "path", g.metricsFile, "error", merr)
		}
	}
	return err
}

func (a *app) dispatch(ctx context.Context, cmd string, cmdArgs []string) error {
	switch cmd {
	case "key":
		return a.cmdKey(cmdArgs)
	case "airdrop":
		return a.cmdAirdrop(ctx, cmdArgs)
	case "balance":
		return a.cmdBalance(cmdArgs)
	case "initialize":
		return a.cmdInitialize(ctx, cmdArgs)
	case "create":
		return a.cmdCreate(ctx, cmdArgs)
	case "claim":
		return a.cmdClaim(ctx, cmdArgs)
	case "update-fee":
		return a.cmdUpdateFee(ctx, cmdArgs)
	case "update-fee-destination":
		return a.cmdUpdateFeeDestination(ctx, cmdArgs)
	case "transfer-authority":
		return a.cmdTransferAuthority(ctx, cmdArgs)
	case "show-config":
		return a.cmdShowConfig(cmdArgs)
	case "show-schedule":
		return a.cmdShowSchedule(cmdArgs)
	case "list":
		return a.cmdList(cmdArgs)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
