// Package store defines the persistence surface consumed by the listing,
// renting and payment managers. Implementations: renthub/db (postgres) and
// renthub/store/memstore (in memory).
package store

import (
	"context"
	"fmt"
	"time"

	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned for lookups of absent records. Managers translate
// it into the caller facing not-found taxonomy.
var ErrNotFound = fmt.Errorf("record not found")

type ListingStore interface {
	// InsertListing allocates the next listing id, assigns it to the
	// listing and returns it. Ids are 1-based and never reused.
	InsertListing(ctx context.Context, listing *types.Listing) (int64, error)
	Listing(ctx context.Context, id int64) (*types.Listing, error)
	UpdateListing(ctx context.Context, listing *types.Listing) error
	DeleteListing(ctx context.Context, id int64) error

	ListingCount(ctx context.Context) (int, error)
	UserListingCount(ctx context.Context, lister common.Address) (int, error)
	AssetListingCount(ctx context.Context, original common.Address) (int, error)

	// Window queries return listings ordered by ascending id. An offset at
	// or beyond the total yields an empty slice, a limit larger than the
	// remainder yields only the remainder.
	Listings(ctx context.Context, offset, limit int) ([]*types.Listing, error)
	UserListings(ctx context.Context, lister common.Address, offset, limit int) ([]*types.Listing, error)
	AssetListings(ctx context.Context, original common.Address, offset, limit int) ([]*types.Listing, error)
}

type RentalStore interface {
	InsertRental(ctx context.Context, rental *types.RentalAgreement) (int64, error)
	Rental(ctx context.Context, id int64) (*types.RentalAgreement, error)

	// ActiveRentalForAsset returns the agreement covering the given warped
	// asset whose end time is still ahead of now, or ErrNotFound.
	ActiveRentalForAsset(ctx context.Context, assetID types.AssetID, now time.Time) (*types.RentalAgreement, error)
	// HasRentalForAsset reports whether any agreement, expired or not, has
	// ever covered the given warped asset.
	HasRentalForAsset(ctx context.Context, assetID types.AssetID) (bool, error)

	UserRentalCount(ctx context.Context, renter common.Address, now time.Time) (int, error)
	UserRentals(ctx context.Context, renter common.Address, now time.Time, offset, limit int) ([]*types.RentalAgreement, error)
	CollectionRentedValue(ctx context.Context, collectionID common.Hash, renter common.Address, now time.Time) (decimal.Decimal, error)
}

type BalanceStore interface {
	AddBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error
	SubBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error
	// Balance returns zero for payees or tokens never credited.
	Balance(ctx context.Context, payee types.Payee, token common.Address) (decimal.Decimal, error)
	// Balances returns every token with a non zero balance and no others.
	Balances(ctx context.Context, payee types.Payee) ([]*types.TokenBalance, error)
}

type WarperStore interface {
	InsertWarper(ctx context.Context, warper *types.Warper) error
	Warper(ctx context.Context, address common.Address) (*types.Warper, error)
	UpdateWarper(ctx context.Context, warper *types.Warper) error
	DeleteWarper(ctx context.Context, address common.Address) error

	UniverseWarperCount(ctx context.Context, universeID int64) (int, error)
	UniverseWarpers(ctx context.Context, universeID int64, offset, limit int) ([]*types.Warper, error)
	AssetWarpers(ctx context.Context, original common.Address, offset, limit int) ([]*types.Warper, error)
	SetWarperControllers(ctx context.Context, warpers []common.Address, controller common.Address) error
}

type UniverseStore interface {
	InsertUniverse(ctx context.Context, universe *types.Universe) (int64, error)
	Universe(ctx context.Context, id int64) (*types.Universe, error)
	UpdateUniverse(ctx context.Context, universe *types.Universe) error
}

// CustodyRecord tracks one asset held by a vault on behalf of its owner.
type CustodyRecord struct {
	Asset       types.Asset    `json:"asset"`
	Owner       common.Address `json:"owner" db:"owner"`
	DepositedAt time.Time      `json:"deposited_at" db:"deposited_at"`
}

type CustodyStore interface {
	PutCustody(ctx context.Context, record *CustodyRecord) error
	Custody(ctx context.Context, assetID types.AssetID) (*CustodyRecord, error)
	DeleteCustody(ctx context.Context, assetID types.AssetID) error
}

// StoreTx is the store surface visible inside one Atomic block.
type StoreTx interface {
	ListingStore
	RentalStore
	BalanceStore
	WarperStore
	UniverseStore
	CustodyStore
}

// Store is the full persistence surface. Atomic applies every mutation fn
// makes as one all-or-nothing unit: an error from fn discards them all.
type Store interface {
	StoreTx
	Atomic(ctx context.Context, fn func(tx StoreTx) error) error
}
