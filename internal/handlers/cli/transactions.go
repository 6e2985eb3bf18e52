package cli

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/txlifecycle"

	"github.com/urfave/cli/v3"
)

// txOutput is what send and deploy print.
type txOutput struct {
	State   string         `json:"state"`
	TxHash  string         `json:"tx_hash,omitempty"`
	Receipt *chain.Receipt `json:"receipt,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func capabilitiesCommand(node Node, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "capabilities",
		Description: "List the RPC methods the client will call on the node.",
		Usage:       "Prints the capability set as a JSON array.",
		Action: func(_ context.Context, _ *cli.Command) error {
			return printJSON(w, node.Capabilities())
		},
	}
}

func balanceCommand(node Node, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "balance",
		Description: "Print the balance of an address.",
		Usage:       "Reads the balance at --block, the head by default.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Account address",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "block",
				Usage: "Block to read the balance at",
				Value: "latest",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			at, err := chain.ParseBlockParameter(c.String("block"))
			if err != nil {
				return err
			}

			balance, err := node.Balance(ctx, c.String("address"), at)
			if err != nil {
				return err
			}

			return printJSON(w, map[string]string{
				"address": c.String("address"),
				"balance": balance.String(),
			})
		},
	}
}

// receiptCommand waits for the receipt of a transaction.
//
// Usage example:
//
//	tolclient receipt --hash 0xabc...
func receiptCommand(receipts ReceiptWaiter, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "receipt",
		Description: "Wait for the receipt of a transaction.",
		Usage:       "Polls until the receipt appears or the attempt budget is spent.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "hash",
				Usage:    "Transaction hash",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			receipt, err := receipts.WaitForReceipt(ctx, c.String("hash"))
			if err != nil {
				return err
			}

			return printJSON(w, receipt)
		},
	}
}

// sendCommand submits a transaction and waits for its receipt.
//
// Usage example:
//
//	tolclient send --to 5493... --amount 1000 --gas 21464 --gas-price 1000000000
func sendCommand(tx Transactor, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "send",
		Description: "Submit a transaction and wait for its receipt.",
		Usage:       "Amounts accept decimal or 0x-prefixed hex.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Receiver address",
				Required: true,
			},
		}, transactionFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if tx == nil {
				return errNoSender
			}

			req, err := transactionRequest(c)
			if err != nil {
				return err
			}
			req.ReceiverAddress = c.String("to")

			result, err := tx.Send(ctx, req)
			return printResult(w, result, err)
		},
	}
}

// deployCommand submits contract code.
//
// Usage example:
//
//	tolclient deploy --data 6080604052... --gas 6000000 --gas-price 1000000000
func deployCommand(tx Transactor, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "deploy",
		Description: "Deploy a contract and wait for its receipt.",
		Usage:       "--data is the contract code. The receipt's new_address is the contract.",
		Flags:       transactionFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			if tx == nil {
				return errNoSender
			}

			req, err := transactionRequest(c)
			if err != nil {
				return err
			}

			result, err := tx.Deploy(ctx, req)
			return printResult(w, result, err)
		},
	}
}

// callCommand runs a read-only call.
//
// Usage example:
//
//	tolclient call --to 5493... --data 0x70a08231...
func callCommand(tx Transactor, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "call",
		Description: "Run a read-only contract call against the latest state.",
		Usage:       "Prints the call output. Reverted calls fail with the revert reason.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Contract address",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Hex encoded call data",
			},
			&cli.StringFlag{
				Name:  "gas",
				Usage: "Gas limit",
				Value: "600000",
			},
			&cli.StringFlag{
				Name:  "gas-price",
				Usage: "Gas price",
				Value: "1",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if tx == nil {
				return errNoSender
			}

			gas, err := parseBig("gas", c.String("gas"))
			if err != nil {
				return err
			}
			gasPrice, err := parseBig("gas-price", c.String("gas-price"))
			if err != nil {
				return err
			}

			output, err := tx.SendCall(ctx, txlifecycle.CallRequest{
				ReceiverAddress: c.String("to"),
				Data:            c.String("data"),
				Gas:             gas,
				GasPrice:        gasPrice,
			})
			if err != nil {
				return err
			}

			return printJSON(w, map[string]string{"output": output})
		},
	}
}

func estimateGasCommand(tx Transactor, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "estimate-gas",
		Description: "Estimate the gas a transaction would consume.",
		Usage:       "Takes the same flags as send.",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "to",
				Usage:    "Receiver address",
				Required: true,
			},
		}, transactionFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			if tx == nil {
				return errNoSender
			}

			req, err := transactionRequest(c)
			if err != nil {
				return err
			}
			req.ReceiverAddress = c.String("to")

			gas, err := tx.EstimateGas(ctx, req)
			if err != nil {
				return err
			}

			return printJSON(w, map[string]string{"gas": gas.String()})
		},
	}
}

func transactionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "amount",
			Usage: "Value transferred",
			Value: "0",
		},
		&cli.StringFlag{
			Name:     "gas",
			Usage:    "Gas limit",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "gas-price",
			Usage:    "Gas price",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "data",
			Usage: "Hex encoded payload",
		},
	}
}

func transactionRequest(c *cli.Command) (txlifecycle.Request, error) {
	amount, err := parseBig("amount", c.String("amount"))
	if err != nil {
		return txlifecycle.Request{}, err
	}

	gas, err := parseBig("gas", c.String("gas"))
	if err != nil {
		return txlifecycle.Request{}, err
	}

	gasPrice, err := parseBig("gas-price", c.String("gas-price"))
	if err != nil {
		return txlifecycle.Request{}, err
	}

	return txlifecycle.Request{
		Amount:   amount,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     c.String("data"),
	}, nil
}

func parseBig(name, s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid --%s %q: want a non-negative decimal or 0x-prefixed number", name, s)
	}
	return n, nil
}

// printResult prints where the lifecycle ended, even when it failed, and passes err on.
func printResult(w io.Writer, result txlifecycle.Result, err error) error {
	out := txOutput{
		State:  result.State.String(),
		TxHash: result.TxHash,
	}
	if result.Receipt.TransactionHash != "" {
		out.Receipt = &result.Receipt
	}
	if err != nil {
		out.Error = err.Error()
	}

	if printErr := printJSON(w, out); printErr != nil {
		return printErr
	}
	return err
}
