// Package listings owns the listing lifecycle: create, pause, delist,
// withdraw, and the paginated listing queries.
package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"renthub-services/renthub/events"
	"renthub-services/renthub/registry"
	"renthub-services/renthub/rentlog"
	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

// Store is the persistence surface the manager needs: the listing queries
// plus the transaction boundary that keeps a custody write and its listing
// write together.
type Store interface {
	store.ListingStore
	Atomic(ctx context.Context, fn func(tx store.StoreTx) error) error
}

type Manager struct {
	store      Store
	classes    *registry.AssetClasses
	strategies *registry.ListingStrategies
	events     events.Publisher
}

func NewManager(s Store, classes *registry.AssetClasses, strategies *registry.ListingStrategies, publisher events.Publisher) *Manager {
	return &Manager{
		store:      s,
		classes:    classes,
		strategies: strategies,
		events:     publisher,
	}
}

// ListAsset moves the asset into its class vault and registers the listing.
// The listing group id equals the listing id for self grouped listings.
func (m *Manager) ListAsset(ctx context.Context, lister common.Address, asset types.Asset, params types.ListingParams, maxLockPeriod uint32, immediatePayout bool) (int64, int64, error) {
	entry, err := m.classes.Resolve(asset.ID.Class)
	if err != nil {
		return 0, 0, terror.Error(err, "asset class is not supported")
	}
	_, err = m.strategies.Resolve(params.Strategy)
	if err != nil {
		return 0, 0, terror.Error(err, "listing strategy is not supported")
	}
	if maxLockPeriod == 0 {
		return 0, 0, terror.Error(&types.InvalidLockPeriodError{RentalPeriod: 0, MaxLockPeriod: 0}, "max lock period must be positive")
	}

	listing := &types.Listing{
		Lister:          lister,
		Asset:           asset,
		Params:          params,
		MaxLockPeriod:   maxLockPeriod,
		ImmediatePayout: immediatePayout,
		CreatedAt:       time.Now(),
	}
	var id int64
	err = m.store.Atomic(ctx, func(tx store.StoreTx) error {
		err := entry.Vault.DepositFor(ctx, tx, lister, asset)
		if err != nil {
			rentlog.L.Error().Err(err).
				Str("lister", lister.Hex()).
				Str("class", asset.ID.Class.String()).
				Msg("failed to move asset into custody")
			return terror.Error(err, "could not take custody of the asset")
		}
		id, err = tx.InsertListing(ctx, listing)
		if err != nil {
			return terror.Error(err, "could not store the listing")
		}
		listing.GroupID = id
		err = tx.UpdateListing(ctx, listing)
		if err != nil {
			return terror.Error(err, "could not store the listing")
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	m.events.Publish(fmt.Sprintf("/ws/listings/%d", id), events.HubKeyAssetListed, &events.AssetListed{
		ListingID:      id,
		ListingGroupID: listing.GroupID,
		Lister:         lister,
		Asset:          asset,
		Params:         params,
		MaxLockPeriod:  maxLockPeriod,
	})
	rentlog.L.Info().Int64("listing_id", id).Str("lister", lister.Hex()).Msg("asset listed")

	return id, listing.GroupID, nil
}

// DelistAsset soft deletes the listing. The record and every listing
// counter stay in place; only withdrawal removes them.
func (m *Manager) DelistAsset(ctx context.Context, caller common.Address, listingID int64) error {
	listing, err := m.listerListing(ctx, caller, listingID)
	if err != nil {
		return err
	}

	listing.Delisted = true
	err = m.store.UpdateListing(ctx, listing)
	if err != nil {
		return terror.Error(err, "could not update the listing")
	}

	m.events.Publish(fmt.Sprintf("/ws/listings/%d", listingID), events.HubKeyAssetDelisted, &events.AssetDelisted{
		ListingID:       listingID,
		Lister:          caller,
		UnlockTimestamp: listing.LockedTill,
	})
	rentlog.L.Info().Int64("listing_id", listingID).Msg("asset delisted")

	return nil
}

// WithdrawAsset returns the asset to the lister and deletes the listing
// record, which is what decrements the listing counters.
func (m *Manager) WithdrawAsset(ctx context.Context, caller common.Address, listingID int64) error {
	listing, err := m.listerListing(ctx, caller, listingID)
	if err != nil {
		return err
	}
	if listing.Locked(time.Now()) {
		return terror.Error(&types.AssetIsLockedError{
			ListingID:  listingID,
			LockedTill: listing.LockedTill.Unix(),
		}, "asset is locked by an active rental")
	}

	entry, err := m.classes.Resolve(listing.Asset.ID.Class)
	if err != nil {
		return terror.Error(err)
	}
	err = m.store.Atomic(ctx, func(tx store.StoreTx) error {
		err := entry.Vault.WithdrawTo(ctx, tx, caller, listing.Asset)
		if err != nil {
			rentlog.L.Error().Err(err).
				Int64("listing_id", listingID).
				Str("lister", caller.Hex()).
				Msg("failed to return asset from custody")
			return terror.Error(err, "could not return the asset from custody")
		}
		err = tx.DeleteListing(ctx, listingID)
		if err != nil {
			return terror.Error(err, "could not remove the listing")
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.events.Publish(fmt.Sprintf("/ws/listings/%d", listingID), events.HubKeyAssetWithdrawn, &events.AssetWithdrawn{
		ListingID: listingID,
		Lister:    caller,
		Asset:     listing.Asset,
	})
	rentlog.L.Info().Int64("listing_id", listingID).Msg("asset withdrawn")

	return nil
}

func (m *Manager) PauseListing(ctx context.Context, caller common.Address, listingID int64) error {
	listing, err := m.listerListing(ctx, caller, listingID)
	if err != nil {
		return err
	}
	if listing.Paused {
		return terror.Error(&types.ListingIsPausedError{ListingID: listingID}, "listing is already paused")
	}

	listing.Paused = true
	err = m.store.UpdateListing(ctx, listing)
	if err != nil {
		return terror.Error(err, "could not update the listing")
	}

	m.events.Publish(fmt.Sprintf("/ws/listings/%d", listingID), events.HubKeyListingPaused, &events.ListingPaused{ListingID: listingID})
	return nil
}

func (m *Manager) UnpauseListing(ctx context.Context, caller common.Address, listingID int64) error {
	listing, err := m.listerListing(ctx, caller, listingID)
	if err != nil {
		return err
	}
	if !listing.Paused {
		return terror.Error(&types.ListingIsNotPausedError{ListingID: listingID}, "listing is not paused")
	}

	listing.Paused = false
	err = m.store.UpdateListing(ctx, listing)
	if err != nil {
		return terror.Error(err, "could not update the listing")
	}

	m.events.Publish(fmt.Sprintf("/ws/listings/%d", listingID), events.HubKeyListingUnpaused, &events.ListingUnpaused{ListingID: listingID})
	return nil
}

// ListingInfo returns the stored listing.
func (m *Manager) ListingInfo(ctx context.Context, listingID int64) (*types.Listing, error) {
	listing, err := m.store.Listing(ctx, listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.ListingIsNotRegisteredError{ListingID: listingID}, "listing is not registered")
		}
		return nil, terror.Error(err)
	}
	return listing, nil
}

func (m *Manager) ListingCount(ctx context.Context) (int, error) {
	return m.store.ListingCount(ctx)
}

func (m *Manager) UserListingCount(ctx context.Context, lister common.Address) (int, error) {
	return m.store.UserListingCount(ctx, lister)
}

func (m *Manager) AssetListingCount(ctx context.Context, original common.Address) (int, error) {
	return m.store.AssetListingCount(ctx, original)
}

func (m *Manager) Listings(ctx context.Context, offset, limit int) ([]int64, []*types.Listing, error) {
	data, err := m.store.Listings(ctx, offset, limit)
	if err != nil {
		return nil, nil, terror.Error(err)
	}
	return listingIDs(data), data, nil
}

func (m *Manager) UserListings(ctx context.Context, lister common.Address, offset, limit int) ([]int64, []*types.Listing, error) {
	data, err := m.store.UserListings(ctx, lister, offset, limit)
	if err != nil {
		return nil, nil, terror.Error(err)
	}
	return listingIDs(data), data, nil
}

func (m *Manager) AssetListings(ctx context.Context, original common.Address, offset, limit int) ([]int64, []*types.Listing, error) {
	data, err := m.store.AssetListings(ctx, original, offset, limit)
	if err != nil {
		return nil, nil, terror.Error(err)
	}
	return listingIDs(data), data, nil
}

func listingIDs(listings []*types.Listing) []int64 {
	ids := make([]int64, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	return ids
}

// listerListing fetches a listing for a lister gated mutation.
func (m *Manager) listerListing(ctx context.Context, caller common.Address, listingID int64) (*types.Listing, error) {
	listing, err := m.store.Listing(ctx, listingID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.NotListedError{ListingID: listingID}, "listing does not exist")
		}
		return nil, terror.Error(err)
	}
	if listing.Lister != caller {
		return nil, terror.Error(&types.CallerIsNotAssetListerError{
			ListingID: listingID,
			Caller:    caller,
		}, "only the lister may do this")
	}
	return listing, nil
}
