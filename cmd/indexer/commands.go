package main

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/0xmhha/wallet-indexer/codec"
	"github.com/0xmhha/wallet-indexer/fetch"
	"github.com/0xmhha/wallet-indexer/internal/constants"
)

type addressArg struct {
	Address string `positional-arg-name:"address" description:"Wallet address"`
}

type scanCommand struct {
	Args addressArg `positional-args:"yes" required:"yes"`

	cli *cli
}

func (cmd *scanCommand) Execute(args []string) error {
	cfg, err := cmd.cli.loadConfig(nil)
	if err != nil {
		return err
	}
	a, err := cmd.cli.open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.wallet.Scan(cmd.cli.ctx, cmd.Args.Address)
	if err != nil {
		return err
	}
	return cmd.cli.printJSON(result)
}

type historyCommand struct {
	Limit  int        `short:"n" long:"limit" description:"Maximum number of transactions to print"`
	NoScan bool       `long:"no-scan" description:"Read the index without scanning recent blocks first"`
	Args   addressArg `positional-args:"yes" required:"yes"`

	cli *cli
}

type historyOutput struct {
	Address      string                    `json:"address"`
	Transactions []fetch.TransactionRecord `json:"transactions"`
	Scan         *fetch.ScanResult         `json:"scan,omitempty"`
}

func (cmd *historyCommand) Execute(args []string) error {
	if cmd.Limit < 0 || cmd.Limit > constants.MaxHistoryLimit {
		return fmt.Errorf("limit must be between 0 and %d", constants.MaxHistoryLimit)
	}

	cfg, err := cmd.cli.loadConfig(nil)
	if err != nil {
		return err
	}
	a, err := cmd.cli.open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := historyOutput{Address: cmd.Args.Address}
	if cmd.NoScan {
		out.Transactions, err = a.wallet.Details(cmd.cli.ctx, cmd.Args.Address, cmd.Limit)
	} else {
		out.Transactions, out.Scan, err = a.wallet.History(cmd.cli.ctx, cmd.Args.Address, cmd.Limit)
	}
	if err != nil {
		return err
	}
	return cmd.cli.printJSON(out)
}

type broadcastCommand struct {
	Tx   string     `long:"tx" required:"yes" description:"Signed transaction bytes, base64 or 0x-prefixed hex"`
	Args addressArg `positional-args:"yes" required:"yes"`

	cli *cli
}

func (cmd *broadcastCommand) Execute(args []string) error {
	tx, err := decodeTx(cmd.Tx)
	if err != nil {
		return err
	}

	cfg, err := cmd.cli.loadConfig(nil)
	if err != nil {
		return err
	}
	a, err := cmd.cli.open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.wallet.Broadcast(cmd.cli.ctx, cmd.Args.Address, tx)
	if err != nil {
		return err
	}
	if err := cmd.cli.printJSON(res); err != nil {
		return err
	}
	if res.Code != 0 {
		return fmt.Errorf("transaction rejected with code %d: %s", res.Code, res.Log)
	}
	return nil
}

// decodeTx reads 0x-prefixed hex, then standard base64 (the encoding
// CometBFT uses for tx bytes), then bare hex
func decodeTx(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("transaction cannot be empty")
	}
	if !strings.HasPrefix(s, "0x") {
		if b, err := base64.StdEncoding.DecodeString(s); err == nil {
			return b, nil
		}
	}
	b, err := codec.DecodeBytes(s)
	if err != nil {
		return nil, fmt.Errorf("transaction is neither base64 nor hex")
	}
	return b, nil
}

type roleEncodeCommand struct {
	Address   string `long:"address" required:"yes" description:"Identity address"`
	Role      string `long:"role" required:"yes" description:"New role, e.g. citizen or ROLE_VALIDATOR"`
	Proof     string `long:"proof" required:"yes" description:"ZKP proof"`
	FeeDenom  string `long:"fee-denom" description:"Change fee denom"`
	FeeAmount string `long:"fee-amount" description:"Change fee amount"`

	cli *cli
}

func (cmd *roleEncodeCommand) Execute(args []string) error {
	role, err := codec.ParseRole(cmd.Role)
	if err != nil {
		return err
	}

	msg := &codec.MsgChangeRole{
		Address:  cmd.Address,
		NewRole:  role,
		ZkpProof: cmd.Proof,
	}
	if cmd.FeeDenom != "" || cmd.FeeAmount != "" {
		msg.ChangeFee = &codec.Coin{Denom: cmd.FeeDenom, Amount: cmd.FeeAmount}
	}

	encoded, err := codec.Encode(msg)
	if err != nil {
		return err
	}
	return cmd.cli.printJSON(encoded)
}

type roleDecodeCommand struct {
	Args struct {
		Data string `positional-arg-name:"data" description:"Encoded message, base64 or hex"`
	} `positional-args:"yes" required:"yes"`

	cli *cli
}

func (cmd *roleDecodeCommand) Execute(args []string) error {
	msg, err := codec.DecodeText(cmd.Args.Data)
	if err != nil {
		return err
	}
	return cmd.cli.printJSON(msg)
}

type versionCommand struct {
	cli *cli
}

func (cmd *versionCommand) Execute(args []string) error {
	_, err := fmt.Fprintf(cmd.cli.out, "wallet-indexer version %s\n  commit: %s\n  built:  %s\n", version, commit, buildTime)
	return err
}
