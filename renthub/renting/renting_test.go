package renting_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"renthub-services/renthub/bridge"
	"renthub-services/renthub/controllers"
	"renthub-services/renthub/events"
	"renthub-services/renthub/registry"
	"renthub-services/renthub/rentlog"
	"renthub-services/renthub/renting"
	"renthub-services/renthub/store"
	"renthub-services/renthub/store/memstore"
	"renthub-services/renthub/vault"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	rentlog.New("testing", "ErrorLevel")
	os.Exit(m.Run())
}

var (
	lister    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	renter    = common.HexToAddress("0x1000000000000000000000000000000000000002")
	owner     = common.HexToAddress("0x1000000000000000000000000000000000000003")
	treasury  = common.HexToAddress("0x1000000000000000000000000000000000000004")
	original  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	warperOne = common.HexToAddress("0x3000000000000000000000000000000000000001")
	baseToken = common.HexToAddress("0x4000000000000000000000000000000000000001")
)

type fixture struct {
	store      *memstore.Store
	manager    *renting.Manager
	transferer *bridge.RecordingTransferer
	recorder   *events.Recorder
	classes    *registry.AssetClasses
	strategies *registry.ListingStrategies
	cfg        *types.Config
	universeID int64
	listingID  int64
}

// newFixture stands up a universe with a 10% fee, a registered warper and
// one listing at 10 per second with a one day max lock.
func newFixture(t *testing.T, immediatePayout bool) *fixture {
	t.Helper()
	ctx := context.Background()

	s := memstore.New()
	transferer := bridge.NewRecordingTransferer(treasury)
	recorder := events.NewRecorder()

	classes := registry.NewAssetClasses()
	classes.Register(types.AssetClassERC721, controllers.NewERC721Controller(), vault.NewTrackingVault())
	strategies := registry.NewListingStrategies()
	strategies.Register(types.ListingStrategyFixedPrice, controllers.NewFixedPriceStrategy())

	cfg := &types.Config{
		ProtocolRentalFeePercent: 500,
		BaseToken:                baseToken,
		Treasury:                 treasury,
	}
	manager := renting.NewManager(s, classes, strategies, transferer, recorder, cfg)

	universeID, err := s.InsertUniverse(ctx, &types.Universe{
		Name:             "testverse",
		Owner:            owner,
		RentalFeePercent: 1000,
	})
	require.NoError(t, err)

	err = s.InsertWarper(ctx, &types.Warper{
		Address:    warperOne,
		Original:   original,
		AssetClass: types.AssetClassERC721,
		UniverseID: universeID,
		Name:       "test warper",
	})
	require.NoError(t, err)

	listing := &types.Listing{
		Lister: lister,
		Asset:  types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(42)),
		Params: types.ListingParams{
			Strategy: types.ListingStrategyFixedPrice,
			Data:     controllers.EncodeFixedPriceData(decimal.NewFromInt(10)),
		},
		MaxLockPeriod:   86400,
		ImmediatePayout: immediatePayout,
	}
	listingID, err := s.InsertListing(ctx, listing)
	require.NoError(t, err)

	return &fixture{
		store:      s,
		manager:    manager,
		transferer: transferer,
		recorder:   recorder,
		classes:    classes,
		strategies: strategies,
		cfg:        cfg,
		universeID: universeID,
		listingID:  listingID,
	}
}

func (f *fixture) params() *types.RentalParams {
	return &types.RentalParams{
		ListingID:    f.listingID,
		Warper:       warperOne,
		Renter:       renter,
		RentalPeriod: 3600,
		PaymentToken: baseToken,
	}
}

func (f *fixture) mutateListing(t *testing.T, mutate func(l *types.Listing)) {
	t.Helper()
	ctx := context.Background()
	listing, err := f.store.Listing(ctx, f.listingID)
	require.NoError(t, err)
	mutate(listing)
	require.NoError(t, f.store.UpdateListing(ctx, listing))
}

func TestEstimateRentFeeSplit(t *testing.T) {
	f := newFixture(t, false)

	fees, err := f.manager.EstimateRent(context.Background(), f.params())
	require.NoError(t, err)

	// 10/sec over an hour, 10% universe fee, 5% protocol fee
	require.True(t, fees.ListerBaseFee.Equal(decimal.NewFromInt(36000)), "lister base %s", fees.ListerBaseFee)
	require.True(t, fees.UniverseBaseFee.Equal(decimal.NewFromInt(3600)), "universe base %s", fees.UniverseBaseFee)
	require.True(t, fees.ProtocolFee.Equal(decimal.NewFromInt(1800)), "protocol %s", fees.ProtocolFee)
	require.True(t, fees.ListerPremium.IsZero())
	require.True(t, fees.UniversePremium.IsZero())
	require.True(t, fees.Total.Equal(decimal.NewFromInt(41400)), "total %s", fees.Total)
}

func TestEstimateRentTruncatesShares(t *testing.T) {
	f := newFixture(t, false)

	// 99 total base fee: 10% is 9.9 and 5% is 4.95, both truncate
	params := f.params()
	params.RentalPeriod = 9
	f.mutateListing(t, func(l *types.Listing) {
		l.Params.Data = controllers.EncodeFixedPriceData(decimal.NewFromInt(11))
	})

	fees, err := f.manager.EstimateRent(context.Background(), params)
	require.NoError(t, err)
	require.True(t, fees.ListerBaseFee.Equal(decimal.NewFromInt(99)))
	require.True(t, fees.UniverseBaseFee.Equal(decimal.NewFromInt(9)), "universe base %s", fees.UniverseBaseFee)
	require.True(t, fees.ProtocolFee.Equal(decimal.NewFromInt(4)), "protocol %s", fees.ProtocolFee)
}

func TestRentHappyPath(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	agreement, fees, err := f.manager.Rent(ctx, f.params(), decimal.NewFromInt(41400))
	require.NoError(t, err)
	require.NotZero(t, agreement.ID)
	require.Equal(t, f.listingID, agreement.ListingID)
	require.Equal(t, renter, agreement.Renter)

	// warped asset swaps the warper in for the original contract
	wToken, wID, err := types.DecodeNFTAssetData(agreement.WarpedAsset.ID.Data)
	require.NoError(t, err)
	require.Equal(t, warperOne, wToken)
	require.Equal(t, int64(42), wID.Int64())

	// single pull of the full amount into the treasury
	require.Len(t, f.transferer.Transfers, 1)
	pull := f.transferer.Transfers[0]
	require.Equal(t, renter, pull.From)
	require.Equal(t, treasury, pull.To)
	require.True(t, pull.Amount.Equal(fees.Total))

	// all three shares accrue to the ledger
	listerBal, err := f.store.Balance(ctx, types.UserPayee(lister), baseToken)
	require.NoError(t, err)
	require.True(t, listerBal.Equal(decimal.NewFromInt(36000)), "lister %s", listerBal)
	universeBal, err := f.store.Balance(ctx, types.UniversePayee(f.universeID), baseToken)
	require.NoError(t, err)
	require.True(t, universeBal.Equal(decimal.NewFromInt(3600)))
	protocolBal, err := f.store.Balance(ctx, types.ProtocolPayee(), baseToken)
	require.NoError(t, err)
	require.True(t, protocolBal.Equal(decimal.NewFromInt(1800)))

	// listing lock pushed out to cover the agreement
	listing, err := f.store.Listing(ctx, f.listingID)
	require.NoError(t, err)
	require.True(t, listing.Locked(time.Now()))
	require.False(t, listing.LockedTill.Before(agreement.EndTime))

	require.Len(t, f.recorder.ByKey(events.HubKeyAssetRented), 1)
	require.Len(t, f.recorder.ByKey(events.HubKeyUserEarned), 1)
	require.Len(t, f.recorder.ByKey(events.HubKeyUniverseEarned), 1)
	require.Len(t, f.recorder.ByKey(events.HubKeyProtocolEarned), 1)
}

func TestRentImmediatePayout(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, fees, err := f.manager.Rent(ctx, f.params(), decimal.NewFromInt(41400))
	require.NoError(t, err)

	// pull to treasury, then direct payout of the lister share only
	require.Len(t, f.transferer.Transfers, 2)
	payout := f.transferer.Transfers[1]
	require.Equal(t, lister, payout.To)
	require.True(t, payout.Amount.Equal(fees.ListerTotal()))

	// lister accrues nothing; universe and protocol still do
	listerBal, err := f.store.Balance(ctx, types.UserPayee(lister), baseToken)
	require.NoError(t, err)
	require.True(t, listerBal.IsZero())
	universeBal, err := f.store.Balance(ctx, types.UniversePayee(f.universeID), baseToken)
	require.NoError(t, err)
	require.True(t, universeBal.Equal(decimal.NewFromInt(3600)))
	protocolBal, err := f.store.Balance(ctx, types.ProtocolPayee(), baseToken)
	require.NoError(t, err)
	require.True(t, protocolBal.Equal(decimal.NewFromInt(1800)))
}

var errStoreDown = errors.New("store write failed")

// failingStore runs Atomic on the real memstore but fails the rental
// insert inside the closure, so every earlier write has to roll back.
type failingStore struct {
	*memstore.Store
}

func (f *failingStore) Atomic(ctx context.Context, fn func(tx store.StoreTx) error) error {
	return f.Store.Atomic(ctx, func(tx store.StoreTx) error {
		return fn(&failingTx{StoreTx: tx})
	})
}

type failingTx struct {
	store.StoreTx
}

func (f *failingTx) InsertRental(ctx context.Context, rental *types.RentalAgreement) (int64, error) {
	return 0, errStoreDown
}

func TestRentStoreFailureLeavesNoState(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	manager := renting.NewManager(&failingStore{Store: f.store}, f.classes, f.strategies, f.transferer, f.recorder, f.cfg)

	_, _, err := manager.Rent(ctx, f.params(), decimal.NewFromInt(41400))
	require.ErrorIs(t, err, errStoreDown)

	// the pulled payment went straight back to the renter
	require.Len(t, f.transferer.Transfers, 2)
	refund := f.transferer.Transfers[1]
	require.Equal(t, renter, refund.To)
	require.True(t, refund.Amount.Equal(decimal.NewFromInt(41400)), "refund %s", refund.Amount)

	// no ledger credit survived the rollback
	for _, payee := range []types.Payee{types.UserPayee(lister), types.UniversePayee(f.universeID), types.ProtocolPayee()} {
		bal, err := f.store.Balance(ctx, payee, baseToken)
		require.NoError(t, err)
		require.True(t, bal.IsZero(), "payee %v holds %s", payee, bal)
	}

	// the listing lock rolled back and no agreement was recorded
	listing, err := f.store.Listing(ctx, f.listingID)
	require.NoError(t, err)
	require.True(t, listing.LockedTill.IsZero(), "locked till %s", listing.LockedTill)

	warpedID := types.AssetID{
		Class: types.AssetClassERC721,
		Data:  types.EncodeNFTAssetData(warperOne, big.NewInt(42)),
	}
	_, err = f.store.ActiveRentalForAsset(ctx, warpedID, time.Now())
	require.ErrorIs(t, err, store.ErrNotFound)
}

// payoutFailingTransferer records the pull but refuses direct payouts.
type payoutFailingTransferer struct {
	*bridge.RecordingTransferer
}

func (p *payoutFailingTransferer) Transfer(ctx context.Context, token, to common.Address, amount decimal.Decimal) error {
	return errors.New("payout refused")
}

func TestRentImmediatePayoutFallsBackToLedger(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	manager := renting.NewManager(f.store, f.classes, f.strategies, &payoutFailingTransferer{RecordingTransferer: f.transferer}, f.recorder, f.cfg)

	agreement, fees, err := manager.Rent(ctx, f.params(), decimal.NewFromInt(41400))
	require.NoError(t, err)
	require.NotZero(t, agreement.ID)

	// the rental stands and the lister share stays claimable on the ledger
	listerBal, err := f.store.Balance(ctx, types.UserPayee(lister), baseToken)
	require.NoError(t, err)
	require.True(t, listerBal.Equal(fees.ListerTotal()), "lister %s", listerBal)
}

func TestRentAlreadyRented(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, _, err := f.manager.Rent(ctx, f.params(), decimal.NewFromInt(41400))
	require.NoError(t, err)

	_, _, err = f.manager.Rent(ctx, f.params(), decimal.NewFromInt(41400))
	var alreadyRented *types.AlreadyRentedError
	require.ErrorAs(t, err, &alreadyRented)

	// the failed rent moved no tokens
	require.Len(t, f.transferer.Transfers, 1)
}

func TestRentSlippageGuard(t *testing.T) {
	f := newFixture(t, false)

	_, _, err := f.manager.Rent(context.Background(), f.params(), decimal.NewFromInt(41399))
	var slippage *types.RentalFeeSlippageError
	require.ErrorAs(t, err, &slippage)
	require.True(t, slippage.Total.Equal(decimal.NewFromInt(41400)))
	require.Empty(t, f.transferer.Transfers)
}

func TestValidationFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown listing", func(t *testing.T) {
		f := newFixture(t, false)
		params := f.params()
		params.ListingID = 999
		_, err := f.manager.EstimateRent(ctx, params)
		var notListed *types.NotListedError
		require.ErrorAs(t, err, &notListed)
	})

	t.Run("wrong payment token", func(t *testing.T) {
		f := newFixture(t, false)
		params := f.params()
		params.PaymentToken = common.HexToAddress("0x99")
		_, err := f.manager.EstimateRent(ctx, params)
		var mismatch *types.BaseTokenMismatchError
		require.ErrorAs(t, err, &mismatch)
		require.Equal(t, baseToken, mismatch.Base)
	})

	t.Run("paused listing", func(t *testing.T) {
		f := newFixture(t, false)
		f.mutateListing(t, func(l *types.Listing) { l.Paused = true })
		_, err := f.manager.EstimateRent(ctx, f.params())
		var paused *types.ListingIsPausedError
		require.ErrorAs(t, err, &paused)
	})

	t.Run("zero rental period", func(t *testing.T) {
		f := newFixture(t, false)
		params := f.params()
		params.RentalPeriod = 0
		_, err := f.manager.EstimateRent(ctx, params)
		var invalid *types.InvalidLockPeriodError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("period above max lock", func(t *testing.T) {
		f := newFixture(t, false)
		params := f.params()
		params.RentalPeriod = 86401
		_, err := f.manager.EstimateRent(ctx, params)
		var invalid *types.InvalidLockPeriodError
		require.ErrorAs(t, err, &invalid)
		require.Equal(t, uint32(86400), invalid.MaxLockPeriod)
	})

	t.Run("unregistered warper", func(t *testing.T) {
		f := newFixture(t, false)
		params := f.params()
		params.Warper = common.HexToAddress("0x77")
		_, err := f.manager.EstimateRent(ctx, params)
		var unregistered *types.WarperIsNotRegisteredError
		require.ErrorAs(t, err, &unregistered)
	})

	t.Run("paused warper", func(t *testing.T) {
		f := newFixture(t, false)
		warper, err := f.store.Warper(ctx, warperOne)
		require.NoError(t, err)
		warper.Paused = true
		require.NoError(t, f.store.UpdateWarper(ctx, warper))

		_, err = f.manager.EstimateRent(ctx, f.params())
		var paused *types.WarperIsPausedError
		require.ErrorAs(t, err, &paused)
	})

	t.Run("incompatible warper original", func(t *testing.T) {
		f := newFixture(t, false)
		warper, err := f.store.Warper(ctx, warperOne)
		require.NoError(t, err)
		warper.Original = common.HexToAddress("0x88")
		require.NoError(t, f.store.UpdateWarper(ctx, warper))

		_, err = f.manager.EstimateRent(ctx, f.params())
		var incompatible *types.IncompatibleAssetError
		require.ErrorAs(t, err, &incompatible)
	})

	t.Run("delisted listing", func(t *testing.T) {
		f := newFixture(t, false)
		f.mutateListing(t, func(l *types.Listing) { l.Delisted = true })
		_, err := f.manager.EstimateRent(ctx, f.params())
		var notListed *types.NotListedError
		require.ErrorAs(t, err, &notListed)
	})
}

func TestValidationOrderPausedBeforePeriod(t *testing.T) {
	// a paused listing with a bad period reports the pause first
	f := newFixture(t, false)
	f.mutateListing(t, func(l *types.Listing) { l.Paused = true })
	params := f.params()
	params.RentalPeriod = 0

	_, err := f.manager.EstimateRent(context.Background(), params)
	var paused *types.ListingIsPausedError
	require.ErrorAs(t, err, &paused)
}

func TestAssetRentalStatusLifecycle(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	warpedID := types.AssetID{
		Class: types.AssetClassERC721,
		Data:  types.EncodeNFTAssetData(warperOne, big.NewInt(42)),
	}

	status, err := f.manager.AssetRentalStatus(ctx, warpedID)
	require.NoError(t, err)
	require.Equal(t, types.RentalStatusNone, status)

	_, _, err = f.manager.Rent(ctx, f.params(), decimal.NewFromInt(41400))
	require.NoError(t, err)

	status, err = f.manager.AssetRentalStatus(ctx, warpedID)
	require.NoError(t, err)
	require.Equal(t, types.RentalStatusRented, status)
}

func TestAssetRentalStatusAfterExpiry(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	warpedID := types.AssetID{
		Class: types.AssetClassERC721,
		Data:  types.EncodeNFTAssetData(warperOne, big.NewInt(42)),
	}
	_, err := f.store.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset: types.Asset{ID: warpedID, Value: decimal.NewFromInt(1)},
		ListingID:   f.listingID,
		Renter:      renter,
		StartTime:   time.Now().Add(-2 * time.Hour),
		EndTime:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	status, err := f.manager.AssetRentalStatus(ctx, warpedID)
	require.NoError(t, err)
	require.Equal(t, types.RentalStatusAvailable, status)
}

func TestRentalAgreementInfoExpiry(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	liveID, err := f.store.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset: types.NewNFTAsset(types.AssetClassERC721, warperOne, big.NewInt(1)),
		ListingID:   f.listingID,
		Renter:      renter,
		StartTime:   time.Now(),
		EndTime:     time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	expiredID, err := f.store.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset: types.NewNFTAsset(types.AssetClassERC721, warperOne, big.NewInt(2)),
		ListingID:   f.listingID,
		Renter:      renter,
		StartTime:   time.Now().Add(-2 * time.Hour),
		EndTime:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	live, err := f.manager.RentalAgreementInfo(ctx, liveID)
	require.NoError(t, err)
	require.Equal(t, liveID, live.ID)

	// expired agreements read back as the zero agreement, not an error
	expired, err := f.manager.RentalAgreementInfo(ctx, expiredID)
	require.NoError(t, err)
	require.Zero(t, expired.ID)

	_, err = f.manager.RentalAgreementInfo(ctx, 9999)
	var notFound *types.RentalAgreementNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestUserRentalCountExcludesExpired(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.store.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset: types.NewNFTAsset(types.AssetClassERC721, warperOne, big.NewInt(1)),
		Renter:      renter,
		StartTime:   time.Now(),
		EndTime:     time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = f.store.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset: types.NewNFTAsset(types.AssetClassERC721, warperOne, big.NewInt(2)),
		Renter:      renter,
		StartTime:   time.Now().Add(-2 * time.Hour),
		EndTime:     time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	count, err := f.manager.UserRentalCount(ctx, renter)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	ids, agreements, err := f.manager.UserRentalAgreements(ctx, renter, 0, 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.Len(t, agreements, 1)
}

func TestCollectionRentedValue(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	collection := common.HexToHash("0xabc1")
	for i, value := range []int64{1, 3} {
		_, err := f.store.InsertRental(ctx, &types.RentalAgreement{
			WarpedAsset: types.Asset{
				ID:    types.AssetID{Class: types.AssetClassERC721, Data: types.EncodeNFTAssetData(warperOne, big.NewInt(int64(i)))},
				Value: decimal.NewFromInt(value),
			},
			CollectionID: collection,
			Renter:       renter,
			StartTime:    time.Now(),
			EndTime:      time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
	}
	// expired agreement in the same collection does not count
	_, err := f.store.InsertRental(ctx, &types.RentalAgreement{
		WarpedAsset: types.Asset{
			ID:    types.AssetID{Class: types.AssetClassERC721, Data: types.EncodeNFTAssetData(warperOne, big.NewInt(9))},
			Value: decimal.NewFromInt(100),
		},
		CollectionID: collection,
		Renter:       renter,
		StartTime:    time.Now().Add(-2 * time.Hour),
		EndTime:      time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	total, err := f.manager.CollectionRentedValue(ctx, collection, renter)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(4)), "total %s", total)
}
