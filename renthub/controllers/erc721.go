package controllers

import (
	"context"

	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// ERC721Controller implements the asset controller for plain non fungible
// tokens. All tokens of one contract share a collection; premiums are flat
// amounts configured per deployment (zero by default).
type ERC721Controller struct {
	UniversePremium decimal.Decimal
	ListerPremium   decimal.Decimal
}

func NewERC721Controller() *ERC721Controller {
	return &ERC721Controller{
		UniversePremium: decimal.Zero,
		ListerPremium:   decimal.Zero,
	}
}

// CollectionID groups every token of one contract under the keccak hash of
// the contract address, so warper contracts can answer balance queries
// without per token storage.
func (c *ERC721Controller) CollectionID(assetID types.AssetID) (common.Hash, error) {
	token, err := assetID.Token()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(token.Bytes()), nil
}

func (c *ERC721Controller) RentalPremiums(ctx context.Context, asset types.Asset, params types.ListingParams, rentalPeriod uint32, universeBaseFee, listerBaseFee decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	return c.UniversePremium, c.ListerPremium, nil
}
