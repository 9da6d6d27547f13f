package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Every failure below aborts its operation with no partial state change.
// The structured variants carry the offending id, address or amount so
// clients can render a precise message.

// Not-found errors.

type NotListedError struct {
	ListingID int64
}

func (e *NotListedError) Error() string {
	return fmt.Sprintf("listing %d is not listed", e.ListingID)
}

type ListingIsNotRegisteredError struct {
	ListingID int64
}

func (e *ListingIsNotRegisteredError) Error() string {
	return fmt.Sprintf("listing %d is not registered", e.ListingID)
}

type WarperIsNotRegisteredError struct {
	Warper common.Address
}

func (e *WarperIsNotRegisteredError) Error() string {
	return fmt.Sprintf("warper %s is not registered", e.Warper.Hex())
}

type UniverseIsNotRegisteredError struct {
	UniverseID int64
}

func (e *UniverseIsNotRegisteredError) Error() string {
	return fmt.Sprintf("universe %d is not registered", e.UniverseID)
}

type RentalAgreementNotFoundError struct {
	RentalID int64
}

func (e *RentalAgreementNotFoundError) Error() string {
	return fmt.Sprintf("rental agreement %d not found", e.RentalID)
}

// State-conflict errors.

type ListingIsPausedError struct {
	ListingID int64
}

func (e *ListingIsPausedError) Error() string {
	return fmt.Sprintf("listing %d is paused", e.ListingID)
}

type ListingIsNotPausedError struct {
	ListingID int64
}

func (e *ListingIsNotPausedError) Error() string {
	return fmt.Sprintf("listing %d is not paused", e.ListingID)
}

type WarperIsPausedError struct {
	Warper common.Address
}

func (e *WarperIsPausedError) Error() string {
	return fmt.Sprintf("warper %s is paused", e.Warper.Hex())
}

type WarperIsNotPausedError struct {
	Warper common.Address
}

func (e *WarperIsNotPausedError) Error() string {
	return fmt.Sprintf("warper %s is not paused", e.Warper.Hex())
}

type AlreadyRentedError struct {
	RentalID int64
}

func (e *AlreadyRentedError) Error() string {
	return fmt.Sprintf("asset is already rented under agreement %d", e.RentalID)
}

type AssetIsLockedError struct {
	ListingID  int64
	LockedTill int64
}

func (e *AssetIsLockedError) Error() string {
	return fmt.Sprintf("listing %d is locked until %d", e.ListingID, e.LockedTill)
}

var ErrDisabledWarperPreset = fmt.Errorf("warper preset is disabled")
var ErrEnabledWarperPreset = fmt.Errorf("warper preset is enabled")

// Authorization errors.

type CallerIsNotAssetListerError struct {
	ListingID int64
	Caller    common.Address
}

func (e *CallerIsNotAssetListerError) Error() string {
	return fmt.Sprintf("caller %s is not the lister of listing %d", e.Caller.Hex(), e.ListingID)
}

type CallerIsNotUniverseOwnerError struct {
	UniverseID int64
	Caller     common.Address
}

func (e *CallerIsNotUniverseOwnerError) Error() string {
	return fmt.Sprintf("caller %s is not the owner of universe %d", e.Caller.Hex(), e.UniverseID)
}

type AccountIsNotUniverseOwnerError struct {
	UniverseID int64
	Account    common.Address
}

func (e *AccountIsNotUniverseOwnerError) Error() string {
	return fmt.Sprintf("account %s is not the owner of universe %d", e.Account.Hex(), e.UniverseID)
}

var ErrCallerIsNotAdmin = fmt.Errorf("caller is not an admin")
var ErrCallerIsNotSupervisor = fmt.Errorf("caller is not a supervisor")

// Validation errors.

type InvalidLockPeriodError struct {
	RentalPeriod  uint32
	MaxLockPeriod uint32
}

func (e *InvalidLockPeriodError) Error() string {
	return fmt.Sprintf("rental period %d is outside (0, %d]", e.RentalPeriod, e.MaxLockPeriod)
}

type InvalidWithdrawalAmountError struct {
	Amount decimal.Decimal
}

func (e *InvalidWithdrawalAmountError) Error() string {
	return fmt.Sprintf("invalid withdrawal amount %s", e.Amount)
}

type InsufficientBalanceError struct {
	Balance decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance, current balance is %s", e.Balance)
}

type UnsupportedAssetError struct {
	Class AssetClassID
}

func (e *UnsupportedAssetError) Error() string {
	return fmt.Sprintf("unsupported asset class %s", e.Class)
}

type UnsupportedListingStrategyError struct {
	Strategy ListingStrategyID
}

func (e *UnsupportedListingStrategyError) Error() string {
	return fmt.Sprintf("unsupported listing strategy %s", e.Strategy)
}

type IncompatibleAssetError struct {
	Asset common.Address
}

func (e *IncompatibleAssetError) Error() string {
	return fmt.Sprintf("asset %s does not match the warper original", e.Asset.Hex())
}

type BaseTokenMismatchError struct {
	Provided common.Address
	Base     common.Address
}

func (e *BaseTokenMismatchError) Error() string {
	return fmt.Sprintf("payment token %s does not match base token %s", e.Provided.Hex(), e.Base.Hex())
}

type RentalFeeSlippageError struct {
	Total decimal.Decimal
	Max   decimal.Decimal
}

func (e *RentalFeeSlippageError) Error() string {
	return fmt.Sprintf("rental fee %s exceeds maximum payment %s", e.Total, e.Max)
}

// Interface-mismatch errors.

type InvalidWarperInterfaceError struct {
	Warper common.Address
}

func (e *InvalidWarperInterfaceError) Error() string {
	return fmt.Sprintf("contract %s does not implement the warper interface", e.Warper.Hex())
}

var ErrInvalidWarperPresetInterface = fmt.Errorf("contract does not implement the warper preset interface")

type InvalidOriginalTokenInterfaceError struct {
	Original common.Address
	Class    AssetClassID
}

func (e *InvalidOriginalTokenInterfaceError) Error() string {
	return fmt.Sprintf("original %s does not implement the %s token interface", e.Original.Hex(), e.Class)
}
