// Package registry holds the capability registries the managers dispatch
// through: asset class controllers with their custody vaults, and listing
// strategy controllers. Registration happens at boot; lookups are read
// only afterwards.
package registry

import (
	"context"

	"renthub-services/renthub/vault"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// AssetController is the per asset class rule set: how assets of the class
// group into collections and what rental premiums they command.
type AssetController interface {
	CollectionID(assetID types.AssetID) (common.Hash, error)
	RentalPremiums(ctx context.Context, asset types.Asset, params types.ListingParams, rentalPeriod uint32, universeBaseFee, listerBaseFee decimal.Decimal) (universePremium decimal.Decimal, listerPremium decimal.Decimal, err error)
}

// ListingStrategyController prices a rental for its strategy.
type ListingStrategyController interface {
	CalculateRentalFee(params types.ListingParams, rentalPeriod uint32) (decimal.Decimal, error)
}

type AssetClassEntry struct {
	Controller AssetController
	Vault      vault.Vault
}

type AssetClasses struct {
	classes map[types.AssetClassID]*AssetClassEntry
}

func NewAssetClasses() *AssetClasses {
	return &AssetClasses{classes: map[types.AssetClassID]*AssetClassEntry{}}
}

func (r *AssetClasses) Register(class types.AssetClassID, controller AssetController, v vault.Vault) {
	r.classes[class] = &AssetClassEntry{Controller: controller, Vault: v}
}

func (r *AssetClasses) Resolve(class types.AssetClassID) (*AssetClassEntry, error) {
	entry, ok := r.classes[class]
	if !ok {
		return nil, &types.UnsupportedAssetError{Class: class}
	}
	return entry, nil
}

type ListingStrategies struct {
	strategies map[types.ListingStrategyID]ListingStrategyController
}

func NewListingStrategies() *ListingStrategies {
	return &ListingStrategies{strategies: map[types.ListingStrategyID]ListingStrategyController{}}
}

func (r *ListingStrategies) Register(strategy types.ListingStrategyID, controller ListingStrategyController) {
	r.strategies[strategy] = controller
}

func (r *ListingStrategies) Resolve(strategy types.ListingStrategyID) (ListingStrategyController, error) {
	controller, ok := r.strategies[strategy]
	if !ok {
		return nil, &types.UnsupportedListingStrategyError{Strategy: strategy}
	}
	return controller, nil
}
