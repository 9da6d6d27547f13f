package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Warper is a registered wrapped asset contract. It fronts an original
// token inside a universe and is the unit renters actually receive.
type Warper struct {
	Address    common.Address `json:"address" db:"address"`
	Original   common.Address `json:"original" db:"original"`
	AssetClass AssetClassID   `json:"asset_class" db:"asset_class"`
	Controller common.Address `json:"controller" db:"controller"`
	UniverseID int64          `json:"universe_id" db:"universe_id"`
	Name       string         `json:"name" db:"name"`
	Paused     bool           `json:"paused" db:"paused"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// Universe is a collection namespace owned by a single account. Its rental
// fee percent (basis points) is applied to every rental of its warpers.
type Universe struct {
	ID               int64          `json:"id" db:"id"`
	Name             string         `json:"name" db:"name"`
	Owner            common.Address `json:"owner" db:"owner"`
	RentalFeePercent uint16         `json:"rental_fee_percent" db:"rental_fee_percent"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}
