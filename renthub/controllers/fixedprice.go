package controllers

import (
	"fmt"
	"math/big"

	"renthub-services/types"

	"github.com/shopspring/decimal"
)

// FixedPriceStrategy prices a rental as baseRate * rentalPeriod, the rate
// being a per second amount in the payment token's smallest unit.
type FixedPriceStrategy struct{}

func NewFixedPriceStrategy() *FixedPriceStrategy {
	return &FixedPriceStrategy{}
}

func (s *FixedPriceStrategy) CalculateRentalFee(params types.ListingParams, rentalPeriod uint32) (decimal.Decimal, error) {
	rate, err := DecodeFixedPriceData(params.Data)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Mul(decimal.NewFromInt(int64(rentalPeriod))), nil
}

// EncodeFixedPriceData packs the per second base rate as a 32 byte big
// endian integer, mirroring the abi encoding of a uint256.
func EncodeFixedPriceData(baseRate decimal.Decimal) []byte {
	data := make([]byte, 32)
	baseRate.BigInt().FillBytes(data)
	return data
}

func DecodeFixedPriceData(data []byte) (decimal.Decimal, error) {
	if len(data) != 32 {
		return decimal.Zero, fmt.Errorf("fixed price data must be 32 bytes, got %d", len(data))
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(data), 0), nil
}
