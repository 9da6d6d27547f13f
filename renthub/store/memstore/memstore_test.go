package memstore_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"renthub-services/renthub/store"
	"renthub-services/renthub/store/memstore"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	lister   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	renter   = common.HexToAddress("0x1000000000000000000000000000000000000002")
	original = common.HexToAddress("0x2000000000000000000000000000000000000001")
	token    = common.HexToAddress("0x4000000000000000000000000000000000000001")
)

func newListing(tokenID int64) *types.Listing {
	return &types.Listing{
		Lister:        lister,
		Asset:         types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(tokenID)),
		MaxLockPeriod: 100,
		CreatedAt:     time.Now(),
	}
}

func TestListingCRUD(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	_, err := s.Listing(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)

	id, err := s.InsertListing(ctx, newListing(1))
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	listing, err := s.Listing(ctx, id)
	require.NoError(t, err)
	require.Equal(t, lister, listing.Lister)

	listing.Paused = true
	require.NoError(t, s.UpdateListing(ctx, listing))

	// reads hand back copies, mutating them does not leak into the store
	listing.Paused = false
	stored, err := s.Listing(ctx, id)
	require.NoError(t, err)
	require.True(t, stored.Paused)

	require.NoError(t, s.DeleteListing(ctx, id))
	require.ErrorIs(t, s.DeleteListing(ctx, id), store.ErrNotFound)
}

func TestListingWindows(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	for i := int64(1); i <= 4; i++ {
		_, err := s.InsertListing(ctx, newListing(i))
		require.NoError(t, err)
	}

	page, err := s.Listings(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(1), page[0].ID)

	page, err = s.Listings(ctx, 3, 5)
	require.NoError(t, err)
	require.Len(t, page, 1)

	page, err = s.Listings(ctx, 99, 5)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestNegativeWindowParams(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		_, err := s.InsertListing(ctx, newListing(i))
		require.NoError(t, err)
	}

	// negative paging values clamp instead of panicking
	page, err := s.Listings(ctx, -1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(1), page[0].ID)

	page, err = s.Listings(ctx, 0, -5)
	require.NoError(t, err)
	require.Empty(t, page)

	rentals, err := s.UserRentals(ctx, renter, time.Now(), -3, 10)
	require.NoError(t, err)
	require.Empty(t, rentals)

	warpers, err := s.UniverseWarpers(ctx, 1, -2, 10)
	require.NoError(t, err)
	require.Empty(t, warpers)
}

func TestReturnedRecordsShareNoSlices(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	listing := newListing(1)
	listing.Params = types.ListingParams{Strategy: types.ListingStrategyFixedPrice, Data: []byte{1, 2, 3}}
	id, err := s.InsertListing(ctx, listing)
	require.NoError(t, err)

	// scribbling over a returned listing's byte slices must not reach
	// the stored record
	got, err := s.Listing(ctx, id)
	require.NoError(t, err)
	got.Asset.ID.Data[0] ^= 0xff
	got.Params.Data[0] = 99

	stored, err := s.Listing(ctx, id)
	require.NoError(t, err)
	require.True(t, stored.Asset.ID.Equal(listing.Asset.ID))
	require.Equal(t, []byte{1, 2, 3}, stored.Params.Data)

	asset := types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(7))
	rentalID, err := s.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset:   asset,
		Renter:        renter,
		StartTime:     time.Now(),
		EndTime:       time.Now().Add(time.Hour),
		ListingParams: types.ListingParams{Strategy: types.ListingStrategyFixedPrice, Data: []byte{4, 5}},
	})
	require.NoError(t, err)

	rental, err := s.Rental(ctx, rentalID)
	require.NoError(t, err)
	rental.WarpedAsset.ID.Data[0] ^= 0xff
	rental.ListingParams.Data[0] = 99

	storedRental, err := s.Rental(ctx, rentalID)
	require.NoError(t, err)
	require.True(t, storedRental.WarpedAsset.ID.Equal(asset.ID))
	require.Equal(t, []byte{4, 5}, storedRental.ListingParams.Data)
}

func TestAtomicRollsBackOnError(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	payee := types.UserPayee(lister)

	id, err := s.InsertListing(ctx, newListing(1))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Atomic(ctx, func(tx store.StoreTx) error {
		require.NoError(t, tx.AddBalance(ctx, payee, token, decimal.NewFromInt(100)))
		_, err := tx.InsertListing(ctx, newListing(2))
		require.NoError(t, err)
		listing, err := tx.Listing(ctx, id)
		require.NoError(t, err)
		listing.Paused = true
		require.NoError(t, tx.UpdateListing(ctx, listing))
		require.NoError(t, tx.DeleteListing(ctx, id))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// every mutation inside the failed block is gone
	balance, err := s.Balance(ctx, payee, token)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	count, err := s.ListingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	listing, err := s.Listing(ctx, id)
	require.NoError(t, err)
	require.False(t, listing.Paused)

	// and a later id allocation does not reuse the discarded one
	nextID, err := s.InsertListing(ctx, newListing(3))
	require.NoError(t, err)
	require.Greater(t, nextID, id)
}

func TestAtomicCommitsOnSuccess(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	payee := types.UserPayee(lister)

	err := s.Atomic(ctx, func(tx store.StoreTx) error {
		if err := tx.AddBalance(ctx, payee, token, decimal.NewFromInt(7)); err != nil {
			return err
		}
		_, err := tx.InsertListing(ctx, newListing(1))
		return err
	})
	require.NoError(t, err)

	balance, err := s.Balance(ctx, payee, token)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(7)))

	count, err := s.ListingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestActiveRentalForAsset(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	now := time.Now()

	asset := types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(7))
	_, err := s.ActiveRentalForAsset(ctx, asset.ID, now)
	require.ErrorIs(t, err, store.ErrNotFound)

	has, err := s.HasRentalForAsset(ctx, asset.ID)
	require.NoError(t, err)
	require.False(t, has)

	id, err := s.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset: asset,
		Renter:      renter,
		StartTime:   now,
		EndTime:     now.Add(time.Hour),
	})
	require.NoError(t, err)

	active, err := s.ActiveRentalForAsset(ctx, asset.ID, now)
	require.NoError(t, err)
	require.Equal(t, id, active.ID)

	// after the end time the agreement no longer reads as active
	_, err = s.ActiveRentalForAsset(ctx, asset.ID, now.Add(2*time.Hour))
	require.ErrorIs(t, err, store.ErrNotFound)

	has, err = s.HasRentalForAsset(ctx, asset.ID)
	require.NoError(t, err)
	require.True(t, has)
}

func TestBalances(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	payee := types.UserPayee(renter)

	balance, err := s.Balance(ctx, payee, token)
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	require.NoError(t, s.AddBalance(ctx, payee, token, decimal.NewFromInt(10)))
	require.NoError(t, s.AddBalance(ctx, payee, token, decimal.NewFromInt(5)))
	require.NoError(t, s.SubBalance(ctx, payee, token, decimal.NewFromInt(3)))

	balance, err = s.Balance(ctx, payee, token)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(12)))

	// payee kinds do not collide even for the same account bytes
	other, err := s.Balance(ctx, types.ProtocolPayee(), token)
	require.NoError(t, err)
	require.True(t, other.IsZero())
}

func TestCustody(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	asset := types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(3))

	_, err := s.Custody(ctx, asset.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutCustody(ctx, &store.CustodyRecord{Asset: asset, Owner: lister, DepositedAt: time.Now()}))

	record, err := s.Custody(ctx, asset.ID)
	require.NoError(t, err)
	require.Equal(t, lister, record.Owner)

	require.NoError(t, s.DeleteCustody(ctx, asset.ID))
	require.ErrorIs(t, s.DeleteCustody(ctx, asset.ID), store.ErrNotFound)
}
