package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type RentalStatus string

const (
	RentalStatusNone      RentalStatus = "NONE"
	RentalStatusAvailable RentalStatus = "AVAILABLE"
	RentalStatusRented    RentalStatus = "RENTED"
)

// RentalAgreement records one executed rental. Agreements are never swept;
// expiry is a comparison of EndTime against the clock at read time.
type RentalAgreement struct {
	ID            int64          `json:"id" db:"id"`
	WarpedAsset   Asset          `json:"warped_asset"`
	CollectionID  common.Hash    `json:"collection_id" db:"collection_id"`
	ListingID     int64          `json:"listing_id" db:"listing_id"`
	Renter        common.Address `json:"renter" db:"renter"`
	StartTime     time.Time      `json:"start_time" db:"start_time"`
	EndTime       time.Time      `json:"end_time" db:"end_time"`
	ListingParams ListingParams  `json:"listing_params"`
}

func (ra *RentalAgreement) Expired(now time.Time) bool {
	return now.After(ra.EndTime)
}

// RentalFeeBreakdown is the deterministic split of a rental payment.
// Total is always the sum of the five parts.
type RentalFeeBreakdown struct {
	ListerBaseFee   decimal.Decimal `json:"lister_base_fee"`
	UniverseBaseFee decimal.Decimal `json:"universe_base_fee"`
	ProtocolFee     decimal.Decimal `json:"protocol_fee"`
	ListerPremium   decimal.Decimal `json:"lister_premium"`
	UniversePremium decimal.Decimal `json:"universe_premium"`
	Total           decimal.Decimal `json:"total"`
}

// ListerTotal is the share owed to the lister: base fee plus premium.
func (f *RentalFeeBreakdown) ListerTotal() decimal.Decimal {
	return f.ListerBaseFee.Add(f.ListerPremium)
}

// UniverseTotal is the share owed to the universe: base fee plus premium.
func (f *RentalFeeBreakdown) UniverseTotal() decimal.Decimal {
	return f.UniverseBaseFee.Add(f.UniversePremium)
}

// RentalParams is the caller supplied request shared by rent estimation
// and execution.
type RentalParams struct {
	ListingID    int64          `json:"listing_id"`
	Warper       common.Address `json:"warper"`
	Renter       common.Address `json:"renter"`
	RentalPeriod uint32         `json:"rental_period"`
	PaymentToken common.Address `json:"payment_token"`
}

// TokenBalance is one entry of a payee's non zero balance enumeration.
type TokenBalance struct {
	Token  common.Address  `json:"token" db:"token"`
	Amount decimal.Decimal `json:"amount" db:"amount"`
}

type PayeeKind string

const (
	PayeeKindProtocol PayeeKind = "PROTOCOL"
	PayeeKindUniverse PayeeKind = "UNIVERSE"
	PayeeKindUser     PayeeKind = "USER"
)

// Payee keys one pull payment ledger account. The protocol payee is a
// singleton, universe payees are keyed by universe id, user payees by
// address.
type Payee struct {
	Kind       PayeeKind      `json:"kind" db:"kind"`
	UniverseID int64          `json:"universe_id,omitempty" db:"universe_id"`
	Account    common.Address `json:"account,omitempty" db:"account"`
}

func ProtocolPayee() Payee {
	return Payee{Kind: PayeeKindProtocol}
}

func UniversePayee(universeID int64) Payee {
	return Payee{Kind: PayeeKindUniverse, UniverseID: universeID}
}

func UserPayee(account common.Address) Payee {
	return Payee{Kind: PayeeKindUser, Account: account}
}
