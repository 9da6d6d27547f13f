// Package renting validates and executes rentals, computes the fee split
// and answers rental state queries.
package renting

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"renthub-services/renthub/bridge"
	"renthub-services/renthub/events"
	"renthub-services/renthub/registry"
	"renthub-services/renthub/rentlog"
	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// Store is the slice of the persistence surface the renting manager uses.
// Atomic applies the ledger credits, the lock extension and the agreement
// insert of one rental as a single unit.
type Store interface {
	store.ListingStore
	store.RentalStore
	store.BalanceStore
	store.WarperStore
	store.UniverseStore
	Atomic(ctx context.Context, fn func(tx store.StoreTx) error) error
}

type Manager struct {
	store      Store
	classes    *registry.AssetClasses
	strategies *registry.ListingStrategies
	transferer bridge.TokenTransferer
	events     events.Publisher

	protocolFeePercent uint16
	baseToken          common.Address
	treasury           common.Address
}

func NewManager(s Store, classes *registry.AssetClasses, strategies *registry.ListingStrategies, transferer bridge.TokenTransferer, publisher events.Publisher, cfg *types.Config) *Manager {
	return &Manager{
		store:              s,
		classes:            classes,
		strategies:         strategies,
		transferer:         transferer,
		events:             publisher,
		protocolFeePercent: cfg.ProtocolRentalFeePercent,
		baseToken:          cfg.BaseToken,
		treasury:           cfg.Treasury,
	}
}

// rentalContext is the resolved state shared by estimation and execution.
type rentalContext struct {
	listing     *types.Listing
	warper      *types.Warper
	universe    *types.Universe
	entry       *registry.AssetClassEntry
	warpedAsset types.Asset
	fees        *types.RentalFeeBreakdown
}

// validate runs the shared fail-fast pipeline. The check order is part of
// the contract: callers rely on which error surfaces first.
func (m *Manager) validate(ctx context.Context, params *types.RentalParams) (*rentalContext, error) {
	listing, err := m.store.Listing(ctx, params.ListingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.NotListedError{ListingID: params.ListingID}, "listing does not exist")
		}
		return nil, terror.Error(err)
	}

	if params.PaymentToken != m.baseToken {
		return nil, terror.Error(&types.BaseTokenMismatchError{
			Provided: params.PaymentToken,
			Base:     m.baseToken,
		}, "payment token does not match the base token")
	}

	if listing.Paused {
		return nil, terror.Error(&types.ListingIsPausedError{ListingID: listing.ID}, "listing is paused")
	}

	if params.RentalPeriod == 0 || params.RentalPeriod > listing.MaxLockPeriod {
		return nil, terror.Error(&types.InvalidLockPeriodError{
			RentalPeriod:  params.RentalPeriod,
			MaxLockPeriod: listing.MaxLockPeriod,
		}, "rental period is out of range")
	}

	warper, err := m.store.Warper(ctx, params.Warper)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.WarperIsNotRegisteredError{Warper: params.Warper}, "warper is not registered")
		}
		return nil, terror.Error(err)
	}
	if warper.Paused {
		return nil, terror.Error(&types.WarperIsPausedError{Warper: warper.Address}, "warper is paused")
	}

	original, tokenID, err := types.DecodeNFTAssetData(listing.Asset.ID.Data)
	if err != nil {
		return nil, terror.Error(err)
	}
	if original != warper.Original {
		return nil, terror.Error(&types.IncompatibleAssetError{Asset: original}, "listed asset does not match the warper original")
	}

	if listing.Delisted {
		return nil, terror.Error(&types.NotListedError{ListingID: listing.ID}, "listing has been delisted")
	}

	universe, err := m.store.Universe(ctx, warper.UniverseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.UniverseIsNotRegisteredError{UniverseID: warper.UniverseID}, "universe is not registered")
		}
		return nil, terror.Error(err)
	}

	entry, err := m.classes.Resolve(listing.Asset.ID.Class)
	if err != nil {
		return nil, terror.Error(err)
	}

	fees, err := m.computeFees(ctx, listing, universe, entry.Controller, params.RentalPeriod)
	if err != nil {
		return nil, err
	}

	rc := &rentalContext{
		listing:  listing,
		warper:   warper,
		universe: universe,
		entry:    entry,
		warpedAsset: types.Asset{
			ID: types.AssetID{
				Class: listing.Asset.ID.Class,
				Data:  types.EncodeNFTAssetData(warper.Address, tokenID),
			},
			Value: listing.Asset.Value,
		},
		fees: fees,
	}
	return rc, nil
}

// computeFees derives the deterministic breakdown. All arithmetic is
// integer; percent shares truncate toward zero.
func (m *Manager) computeFees(ctx context.Context, listing *types.Listing, universe *types.Universe, controller registry.AssetController, rentalPeriod uint32) (*types.RentalFeeBreakdown, error) {
	strategy, err := m.strategies.Resolve(listing.Params.Strategy)
	if err != nil {
		return nil, terror.Error(err)
	}

	listerBaseFee, err := strategy.CalculateRentalFee(listing.Params, rentalPeriod)
	if err != nil {
		return nil, terror.Error(err, "could not price the rental")
	}

	universeBaseFee := feeShare(listerBaseFee, universe.RentalFeePercent)
	protocolFee := feeShare(listerBaseFee, m.protocolFeePercent)

	universePremium, listerPremium, err := controller.RentalPremiums(ctx, listing.Asset, listing.Params, rentalPeriod, universeBaseFee, listerBaseFee)
	if err != nil {
		return nil, terror.Error(err, "could not compute rental premiums")
	}

	fees := &types.RentalFeeBreakdown{
		ListerBaseFee:   listerBaseFee,
		UniverseBaseFee: universeBaseFee,
		ProtocolFee:     protocolFee,
		ListerPremium:   listerPremium,
		UniversePremium: universePremium,
	}
	fees.Total = listerBaseFee.
		Add(universeBaseFee).
		Add(protocolFee).
		Add(listerPremium).
		Add(universePremium)
	return fees, nil
}

// feeShare truncates fee * percent / 10000 to an integer amount.
func feeShare(fee decimal.Decimal, percent uint16) decimal.Decimal {
	share := new(big.Int).Mul(fee.BigInt(), big.NewInt(int64(percent)))
	share.Div(share, big.NewInt(10000))
	return decimal.NewFromBigInt(share, 0)
}

// EstimateRent prices a rental without executing it.
func (m *Manager) EstimateRent(ctx context.Context, params *types.RentalParams) (*types.RentalFeeBreakdown, error) {
	rc, err := m.validate(ctx, params)
	if err != nil {
		return nil, err
	}
	return rc.fees, nil
}

// Rent executes a rental: pulls the payment, splits it between lister,
// universe and protocol, extends the listing lock and records the
// agreement. The lister share pays out immediately when the listing asks
// for it; universe and protocol shares always accrue to the pull ledger.
func (m *Manager) Rent(ctx context.Context, params *types.RentalParams, maxPaymentAmount decimal.Decimal) (*types.RentalAgreement, *types.RentalFeeBreakdown, error) {
	rc, err := m.validate(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()

	active, err := m.store.ActiveRentalForAsset(ctx, rc.warpedAsset.ID, now)
	if err == nil {
		return nil, nil, terror.Error(&types.AlreadyRentedError{RentalID: active.ID}, "asset is already rented")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, nil, terror.Error(err)
	}

	if rc.fees.Total.GreaterThan(maxPaymentAmount) {
		return nil, nil, terror.Error(&types.RentalFeeSlippageError{
			Total: rc.fees.Total,
			Max:   maxPaymentAmount,
		}, "rental fee exceeds the maximum payment amount")
	}

	collectionID, err := rc.entry.Controller.CollectionID(rc.warpedAsset.ID)
	if err != nil {
		return nil, nil, terror.Error(err)
	}

	err = m.transferer.TransferFrom(ctx, params.PaymentToken, params.Renter, m.treasury, rc.fees.Total)
	if err != nil {
		return nil, nil, terror.Error(err, "payment transfer failed")
	}

	endTime := now.Add(time.Duration(params.RentalPeriod) * time.Second)
	if endTime.After(rc.listing.LockedTill) {
		rc.listing.LockedTill = endTime
	}
	agreement := &types.RentalAgreement{
		WarpedAsset:   rc.warpedAsset,
		CollectionID:  collectionID,
		ListingID:     rc.listing.ID,
		Renter:        params.Renter,
		StartTime:     now,
		EndTime:       endTime,
		ListingParams: rc.listing.Params,
	}
	listerShare := rc.fees.ListerTotal()

	// The payment has already been pulled; if any store write fails the
	// whole unit rolls back and the renter is refunded.
	err = m.store.Atomic(ctx, func(tx store.StoreTx) error {
		if !rc.listing.ImmediatePayout {
			err := tx.AddBalance(ctx, types.UserPayee(rc.listing.Lister), params.PaymentToken, listerShare)
			if err != nil {
				return terror.Error(err)
			}
		}
		err := tx.AddBalance(ctx, types.UniversePayee(rc.universe.ID), params.PaymentToken, rc.fees.UniverseTotal())
		if err != nil {
			return terror.Error(err)
		}
		err = tx.AddBalance(ctx, types.ProtocolPayee(), params.PaymentToken, rc.fees.ProtocolFee)
		if err != nil {
			return terror.Error(err)
		}
		err = tx.UpdateListing(ctx, rc.listing)
		if err != nil {
			return terror.Error(err)
		}
		_, err = tx.InsertRental(ctx, agreement)
		if err != nil {
			return terror.Error(err, "could not store the rental agreement")
		}
		return nil
	})
	if err != nil {
		refundErr := m.transferer.Transfer(ctx, params.PaymentToken, params.Renter, rc.fees.Total)
		if refundErr != nil {
			rentlog.L.Error().Err(refundErr).
				Str("renter", params.Renter.Hex()).
				Str("amount", rc.fees.Total.String()).
				Msg("failed to refund renter after aborted rental")
		}
		return nil, nil, err
	}

	if rc.listing.ImmediatePayout {
		err = m.transferer.Transfer(ctx, params.PaymentToken, rc.listing.Lister, listerShare)
		if err != nil {
			// The rental stands. Keep the share claimable on the pull
			// ledger instead of losing it in the treasury.
			rentlog.L.Error().Err(err).
				Int64("listing_id", rc.listing.ID).
				Str("lister", rc.listing.Lister.Hex()).
				Msg("lister payout failed, crediting the pull ledger instead")
			err = m.store.AddBalance(ctx, types.UserPayee(rc.listing.Lister), params.PaymentToken, listerShare)
			if err != nil {
				return nil, nil, terror.Error(err)
			}
		}
	}

	m.publishRented(agreement, rc, params.PaymentToken)
	rentlog.L.Info().
		Int64("rental_id", agreement.ID).
		Int64("listing_id", rc.listing.ID).
		Str("renter", params.Renter.Hex()).
		Str("total", rc.fees.Total.String()).
		Msg("asset rented")

	return agreement, rc.fees, nil
}

func (m *Manager) publishRented(agreement *types.RentalAgreement, rc *rentalContext, token common.Address) {
	m.events.Publish(fmt.Sprintf("/ws/rentals/%d", agreement.ID), events.HubKeyAssetRented, &events.AssetRented{
		RentalID:    agreement.ID,
		Renter:      agreement.Renter,
		ListingID:   agreement.ListingID,
		WarpedAsset: agreement.WarpedAsset,
		StartTime:   agreement.StartTime,
		EndTime:     agreement.EndTime,
	})
	m.events.Publish(fmt.Sprintf("/ws/users/%s/earnings", rc.listing.Lister.Hex()), events.HubKeyUserEarned, &events.UserEarned{
		Account:  rc.listing.Lister,
		RentalID: agreement.ID,
		Token:    token,
		Amount:   rc.fees.ListerTotal(),
	})
	m.events.Publish(fmt.Sprintf("/ws/universes/%d/earnings", rc.universe.ID), events.HubKeyUniverseEarned, &events.UniverseEarned{
		UniverseID: rc.universe.ID,
		RentalID:   agreement.ID,
		Token:      token,
		Amount:     rc.fees.UniverseTotal(),
	})
	m.events.Publish("/ws/protocol/earnings", events.HubKeyProtocolEarned, &events.ProtocolEarned{
		RentalID: agreement.ID,
		Token:    token,
		Amount:   rc.fees.ProtocolFee,
	})
}

// AssetRentalStatus derives the lifecycle state of one warped asset from
// its agreements: rented while a live agreement covers it, available once
// every agreement has expired, none if it was never rented.
func (m *Manager) AssetRentalStatus(ctx context.Context, assetID types.AssetID) (types.RentalStatus, error) {
	_, err := m.store.ActiveRentalForAsset(ctx, assetID, time.Now())
	if err == nil {
		return types.RentalStatusRented, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.RentalStatusNone, terror.Error(err)
	}

	seen, err := m.store.HasRentalForAsset(ctx, assetID)
	if err != nil {
		return types.RentalStatusNone, terror.Error(err)
	}
	if seen {
		return types.RentalStatusAvailable, nil
	}
	return types.RentalStatusNone, nil
}

// RentalAgreementInfo returns the agreement, or a zero valued agreement
// once it has expired. Expired agreements are never eagerly deleted.
func (m *Manager) RentalAgreementInfo(ctx context.Context, rentalID int64) (*types.RentalAgreement, error) {
	agreement, err := m.store.Rental(ctx, rentalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.RentalAgreementNotFoundError{RentalID: rentalID}, "rental agreement not found")
		}
		return nil, terror.Error(err)
	}
	if agreement.Expired(time.Now()) {
		return &types.RentalAgreement{}, nil
	}
	return agreement, nil
}

// UserRentalCount counts the renter's active agreements; expired ones are
// excluded even though they are still stored.
func (m *Manager) UserRentalCount(ctx context.Context, renter common.Address) (int, error) {
	count, err := m.store.UserRentalCount(ctx, renter, time.Now())
	if err != nil {
		return 0, terror.Error(err)
	}
	return count, nil
}

func (m *Manager) UserRentalAgreements(ctx context.Context, renter common.Address, offset, limit int) ([]int64, []*types.RentalAgreement, error) {
	agreements, err := m.store.UserRentals(ctx, renter, time.Now(), offset, limit)
	if err != nil {
		return nil, nil, terror.Error(err)
	}
	ids := make([]int64, 0, len(agreements))
	for _, a := range agreements {
		ids = append(ids, a.ID)
	}
	return ids, agreements, nil
}

// CollectionRentedValue sums the rented value across the renter's live
// agreements in one collection, the query warper contracts use to answer
// balance lookups.
func (m *Manager) CollectionRentedValue(ctx context.Context, collectionID common.Hash, renter common.Address) (decimal.Decimal, error) {
	total, err := m.store.CollectionRentedValue(ctx, collectionID, renter, time.Now())
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return total, nil
}
