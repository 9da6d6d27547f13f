package types

import (
	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	Environment string
	APIAddr     string

	// ProtocolRentalFeePercent is expressed in basis points out of 10000.
	ProtocolRentalFeePercent uint16
	// BaseToken is the ERC20 token every listing must be paid in.
	BaseToken common.Address
	// Treasury receives rental payments before the pull ledger is settled.
	Treasury common.Address

	Admins      []common.Address
	Supervisors []common.Address

	TokenExpirationDays int
	JWTKey              string

	BridgeParams *BridgeParams
}

type BridgeParams struct {
	EthNodeAddr      string
	ETHChainID       int64
	SignerPrivateKey string
	OperatorAddr     common.Address
}
