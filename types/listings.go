package types

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ListingStrategyID is a 4 byte tag identifying a pricing strategy,
// derived the same way as asset class ids.
type ListingStrategyID [4]byte

func ListingStrategyFromName(name string) ListingStrategyID {
	var id ListingStrategyID
	copy(id[:], crypto.Keccak256([]byte(name))[:4])
	return id
}

func (id ListingStrategyID) String() string {
	return fmt.Sprintf("0x%x", id[:])
}

func (id ListingStrategyID) Bytes() []byte {
	return id[:]
}

func ListingStrategyFromBytes(b []byte) (ListingStrategyID, error) {
	var id ListingStrategyID
	if len(b) != len(id) {
		return id, fmt.Errorf("listing strategy id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

var ListingStrategyFixedPrice = ListingStrategyFromName("FIXED_PRICE")

// ListingParams couples a pricing strategy with its strategy specific
// encoded parameters (fixed price: a 32 byte big endian rate per second).
type ListingParams struct {
	Strategy ListingStrategyID `json:"strategy" db:"strategy"`
	Data     []byte            `json:"data" db:"data"`
}

// Listing is a lister's offer of an asset for rent.
//
// LockedTill only ever moves forward; it is pushed out by each rental and
// compared lazily against the clock, never cleared by a sweeper. Counters
// indexed over listings are not decremented on delist, only on withdraw.
type Listing struct {
	ID              int64          `json:"id" db:"id"`
	GroupID         int64          `json:"group_id" db:"group_id"`
	Lister          common.Address `json:"lister" db:"lister"`
	Asset           Asset          `json:"asset"`
	Params          ListingParams  `json:"params"`
	MaxLockPeriod   uint32         `json:"max_lock_period" db:"max_lock_period"`
	LockedTill      time.Time      `json:"locked_till" db:"locked_till"`
	ImmediatePayout bool           `json:"immediate_payout" db:"immediate_payout"`
	Delisted        bool           `json:"delisted" db:"delisted"`
	Paused          bool           `json:"paused" db:"paused"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

// Locked reports whether the underlying asset is still held by an active
// or not yet expired rental at the given time.
func (l *Listing) Locked(now time.Time) bool {
	return l.LockedTill.After(now)
}
