// Package bridge moves ERC20 payment tokens on chain. The managers only
// see the TokenTransferer interface; dev mode and tests use the recording
// implementation.
package bridge

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gofrs/uuid"
	"github.com/ninja-software/terror/v2"
	"github.com/sasha-s/go-deadlock"
	"github.com/shopspring/decimal"

	"renthub-services/renthub/rentlog"
)

type TokenTransferer interface {
	TransferFrom(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error
	Transfer(ctx context.Context, token, to common.Address, amount decimal.Decimal) error
}

// TransferReference uniquely tags one token movement across logs and
// the recorded transfer list.
type TransferReference string

func NewTransferReference(kind string) TransferReference {
	return TransferReference(fmt.Sprintf("%s|%s", kind, uuid.Must(uuid.NewV4())))
}

const erc20ABI = `[
	{"name":"transfer","type":"function","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"transferFrom","type":"function","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ERC20Client signs and sends token transfers with the operator key.
type ERC20Client struct {
	client  *ethclient.Client
	chainID *big.Int
	opts    *bind.TransactOpts
	parsed  abi.ABI
}

func NewERC20Client(nodeAddr string, chainID int64, signerPrivateKey string) (*ERC20Client, error) {
	client, err := ethclient.Dial(nodeAddr)
	if err != nil {
		return nil, terror.Error(err, "could not connect to eth node")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(signerPrivateKey, "0x"))
	if err != nil {
		return nil, terror.Error(err, "invalid signer private key")
	}

	cid := big.NewInt(chainID)
	opts, err := bind.NewKeyedTransactorWithChainID(key, cid)
	if err != nil {
		return nil, terror.Error(err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, terror.Error(err)
	}

	return &ERC20Client{
		client:  client,
		chainID: cid,
		opts:    opts,
		parsed:  parsed,
	}, nil
}

func (c *ERC20Client) contract(token common.Address) *bind.BoundContract {
	return bind.NewBoundContract(token, c.parsed, c.client, c.client, c.client)
}

func (c *ERC20Client) TransferFrom(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error {
	opts := *c.opts
	opts.Context = ctx

	ref := NewTransferReference("pull")
	tx, err := c.contract(token).Transact(&opts, "transferFrom", from, to, amount.BigInt())
	if err != nil {
		rentlog.L.Error().Err(err).
			Str("ref", string(ref)).
			Str("token", token.Hex()).
			Str("from", from.Hex()).
			Str("to", to.Hex()).
			Str("amount", amount.String()).
			Msg("erc20 transferFrom failed")
		return terror.Error(err, "token transfer failed")
	}
	rentlog.L.Debug().Str("ref", string(ref)).Str("tx", tx.Hash().Hex()).Str("token", token.Hex()).Msg("erc20 transferFrom sent")
	return nil
}

func (c *ERC20Client) Transfer(ctx context.Context, token, to common.Address, amount decimal.Decimal) error {
	opts := *c.opts
	opts.Context = ctx

	ref := NewTransferReference("payout")
	tx, err := c.contract(token).Transact(&opts, "transfer", to, amount.BigInt())
	if err != nil {
		rentlog.L.Error().Err(err).
			Str("ref", string(ref)).
			Str("token", token.Hex()).
			Str("to", to.Hex()).
			Str("amount", amount.String()).
			Msg("erc20 transfer failed")
		return terror.Error(err, "token transfer failed")
	}
	rentlog.L.Debug().Str("ref", string(ref)).Str("tx", tx.Hash().Hex()).Str("token", token.Hex()).Msg("erc20 transfer sent")
	return nil
}

// RecordedTransfer is one captured movement of payment tokens.
type RecordedTransfer struct {
	Ref    TransferReference
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount decimal.Decimal
}

// RecordingTransferer satisfies TokenTransferer without touching a chain.
type RecordingTransferer struct {
	deadlock.Mutex
	Operator  common.Address
	Transfers []RecordedTransfer
}

func NewRecordingTransferer(operator common.Address) *RecordingTransferer {
	return &RecordingTransferer{Operator: operator}
}

func (r *RecordingTransferer) TransferFrom(ctx context.Context, token, from, to common.Address, amount decimal.Decimal) error {
	r.Lock()
	defer r.Unlock()
	r.Transfers = append(r.Transfers, RecordedTransfer{Ref: NewTransferReference("pull"), Token: token, From: from, To: to, Amount: amount})
	return nil
}

func (r *RecordingTransferer) Transfer(ctx context.Context, token, to common.Address, amount decimal.Decimal) error {
	r.Lock()
	defer r.Unlock()
	r.Transfers = append(r.Transfers, RecordedTransfer{Ref: NewTransferReference("payout"), Token: token, From: r.Operator, To: to, Amount: amount})
	return nil
}
