// Package events defines the payloads emitted by the managers and the
// publisher they go out through. Field order in the payload structs is part
// of the indexer contract; do not reorder.
package events

import (
	"time"

	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	HubKeyAssetListed     = "LISTING:CREATED"
	HubKeyAssetDelisted   = "LISTING:DELISTED"
	HubKeyAssetWithdrawn  = "LISTING:WITHDRAWN"
	HubKeyListingPaused   = "LISTING:PAUSED"
	HubKeyListingUnpaused = "LISTING:UNPAUSED"
	HubKeyAssetRented     = "RENTAL:CREATED"
	HubKeyUserEarned      = "EARNINGS:USER"
	HubKeyUniverseEarned  = "EARNINGS:UNIVERSE"
	HubKeyProtocolEarned  = "EARNINGS:PROTOCOL"
	HubKeyFundsWithdrawn  = "EARNINGS:WITHDRAWN"
)

type AssetListed struct {
	ListingID      int64               `json:"listing_id"`
	ListingGroupID int64               `json:"listing_group_id"`
	Lister         common.Address      `json:"lister"`
	Asset          types.Asset         `json:"asset"`
	Params         types.ListingParams `json:"params"`
	MaxLockPeriod  uint32              `json:"max_lock_period"`
}

type AssetDelisted struct {
	ListingID       int64          `json:"listing_id"`
	Lister          common.Address `json:"lister"`
	UnlockTimestamp time.Time      `json:"unlock_timestamp"`
}

type AssetWithdrawn struct {
	ListingID int64          `json:"listing_id"`
	Lister    common.Address `json:"lister"`
	Asset     types.Asset    `json:"asset"`
}

type ListingPaused struct {
	ListingID int64 `json:"listing_id"`
}

type ListingUnpaused struct {
	ListingID int64 `json:"listing_id"`
}

type AssetRented struct {
	RentalID    int64          `json:"rental_id"`
	Renter      common.Address `json:"renter"`
	ListingID   int64          `json:"listing_id"`
	WarpedAsset types.Asset    `json:"warped_asset"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
}

type UserEarned struct {
	Account  common.Address  `json:"account"`
	RentalID int64           `json:"rental_id"`
	Token    common.Address  `json:"token"`
	Amount   decimal.Decimal `json:"amount"`
}

type UniverseEarned struct {
	UniverseID int64           `json:"universe_id"`
	RentalID   int64           `json:"rental_id"`
	Token      common.Address  `json:"token"`
	Amount     decimal.Decimal `json:"amount"`
}

type ProtocolEarned struct {
	RentalID int64           `json:"rental_id"`
	Token    common.Address  `json:"token"`
	Amount   decimal.Decimal `json:"amount"`
}

type FundsWithdrawn struct {
	Payee     types.Payee     `json:"payee"`
	Token     common.Address  `json:"token"`
	Amount    decimal.Decimal `json:"amount"`
	Recipient common.Address  `json:"recipient"`
}

// Publisher fans events out to subscribers. Managers publish after their
// state mutation completes; a failed operation emits nothing.
type Publisher interface {
	Publish(uri string, key string, payload interface{})
}
