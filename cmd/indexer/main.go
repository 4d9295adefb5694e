package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// Options are shared by every subcommand. Flags override the config file
// and WALLETIDX_* environment variables.
type Options struct {
	Config    string `short:"c" long:"config" env:"WALLETIDX_CONFIG" description:"Path to configuration file (YAML)"`
	RPC       string `long:"rpc" description:"CometBFT RPC endpoint URL"`
	Backend   string `long:"backend" choice:"pebble" choice:"redis" description:"Transaction index backend"`
	DB        string `long:"db" description:"Database path for the pebble backend"`
	RedisAddr string `long:"redis-addr" description:"Redis address for the redis backend"`
	LogLevel  string `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat string `long:"log-format" choice:"json" choice:"console" description:"Log format"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and executes the selected subcommand
func run(ctx context.Context, args []string, out io.Writer) error {
	c := &cli{ctx: ctx, out: out}
	parser := newParser(c)
	_, err := parser.ParseArgs(args)
	return err
}

func newParser(c *cli) *flags.Parser {
	parser := flags.NewParser(&c.opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "wallet-indexer"
	parser.LongDescription = "Indexes the transactions of volnix wallet addresses from a CometBFT node."

	mustAdd(parser, "serve", "Run the indexer service",
		"Serves the HTTP API and keeps tracked addresses indexed on a schedule and on new blocks.",
		&serveCommand{cli: c})
	mustAdd(parser, "scan", "Scan recent blocks for one address",
		"Walks the recent block window once and prints the scan summary.",
		&scanCommand{cli: c})
	mustAdd(parser, "history", "Print the transaction history of an address",
		"Scans the address (unless --no-scan) and prints its indexed transactions, newest first.",
		&historyCommand{cli: c})
	mustAdd(parser, "broadcast", "Broadcast a signed transaction",
		"Submits a signed transaction with broadcast_tx_sync and indexes it for the address when accepted.",
		&broadcastCommand{cli: c})
	mustAdd(parser, "role-encode", "Encode a MsgChangeRole",
		"Encodes a MsgChangeRole and prints its type URL, base64 and hex forms. No node is contacted.",
		&roleEncodeCommand{cli: c})
	mustAdd(parser, "role-decode", "Decode a MsgChangeRole",
		"Decodes a base64 or hex MsgChangeRole and prints it as JSON. No node is contacted.",
		&roleDecodeCommand{cli: c})
	mustAdd(parser, "version", "Show version information",
		"Prints the version, commit and build time.",
		&versionCommand{cli: c})

	return parser
}

func mustAdd(parser *flags.Parser, name, short, long string, data interface{}) {
	if _, err := parser.AddCommand(name, short, long, data); err != nil {
		panic(fmt.Sprintf("register command %s: %v", name, err))
	}
}
