package db_test

import (
	"context"
	"errors"
	"math/big"
	"regexp"
	"testing"
	"time"

	"renthub-services/renthub/db"
	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/DATA-DOG/go-sqlmock"
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

func newMockStore(t *testing.T) (*db.Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return db.NewStore(conn), mock
}

func TestListingNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT").WithArgs(int64(42)).WillReturnError(sqlmock.ErrCancelled)
	_, err := s.Listing(context.Background(), 42)
	require.Error(t, err)

	mock.ExpectQuery("SELECT").WithArgs(int64(43)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.Listing(context.Background(), 43)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingScan(t *testing.T) {
	s, mock := newMockStore(t)

	asset := types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(7))
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "group_id", "lister", "asset_class", "asset_data", "asset_value",
		"strategy", "strategy_data", "max_lock_period", "locked_till",
		"immediate_payout", "delisted", "paused", "created_at",
	}).AddRow(
		int64(7), int64(7), lister.Bytes(), asset.ID.Class.Bytes(), asset.ID.Data, "1",
		types.ListingStrategyFixedPrice.Bytes(), make([]byte, 32), int64(86400), nil,
		false, false, true, now,
	)
	mock.ExpectQuery("SELECT").WithArgs(int64(7)).WillReturnRows(rows)

	listing, err := s.Listing(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), listing.ID)
	require.Equal(t, lister, listing.Lister)
	require.True(t, listing.Asset.ID.Equal(asset.ID))
	require.True(t, listing.Paused)
	require.True(t, listing.LockedTill.IsZero(), "null locked_till reads as the zero time")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertListingReturnsID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO listings")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	listing := &types.Listing{
		Lister:        lister,
		Asset:         types.NewNFTAsset(types.AssetClassERC721, original, big.NewInt(1)),
		Params:        types.ListingParams{Strategy: types.ListingStrategyFixedPrice, Data: make([]byte, 32)},
		MaxLockPeriod: 100,
		CreatedAt:     time.Now(),
	}
	id, err := s.InsertListing(context.Background(), listing)
	require.NoError(t, err)
	require.Equal(t, int64(11), id)
	require.Equal(t, int64(11), listing.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubBalanceGuardsOverdraw(t *testing.T) {
	s, mock := newMockStore(t)
	payee := types.UserPayee(renter)

	// the conditional update matches no row, then the balance is read back
	mock.ExpectExec(regexp.QuoteMeta("UPDATE balances")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("5"))

	err := s.SubBalance(context.Background(), payee, token, decimal.NewFromInt(10))
	var insufficient *types.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Balance.Equal(decimal.NewFromInt(5)))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionRentedValueCoalesces(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("0"))

	total, err := s.CollectionRentedValue(context.Background(), common.HexToHash("0xabc"), renter, time.Now())
	require.NoError(t, err)
	require.True(t, total.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicCommits(t *testing.T) {
	s, mock := newMockStore(t)
	payee := types.UserPayee(renter)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO balances")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Atomic(context.Background(), func(tx store.StoreTx) error {
		return tx.AddBalance(context.Background(), payee, token, decimal.NewFromInt(10))
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomicRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	payee := types.UserPayee(renter)

	// a write lands on the transaction, then the closure fails and the
	// whole unit rolls back instead of committing
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO balances")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.Atomic(context.Background(), func(tx store.StoreTx) error {
		addErr := tx.AddBalance(context.Background(), payee, token, decimal.NewFromInt(10))
		require.NoError(t, addErr)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateListingMissingRow(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE listings")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateListing(context.Background(), &types.Listing{ID: 5})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
