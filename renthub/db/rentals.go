package db

import (
	"context"
	"time"

	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

const rentalColumns = `
id, asset_class, asset_data, asset_value, collection_id,
listing_id, renter, start_time, end_time, strategy, strategy_data
`

func (s *Store) InsertRental(ctx context.Context, rental *types.RentalAgreement) (int64, error) {
	q := `--sql
		INSERT INTO rental_agreements (
			asset_class, asset_data, asset_value, collection_id,
			listing_id, renter, start_time, end_time, strategy, strategy_data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, q,
		rental.WarpedAsset.ID.Class.Bytes(),
		rental.WarpedAsset.ID.Data,
		rental.WarpedAsset.Value,
		rental.CollectionID.Bytes(),
		rental.ListingID,
		rental.Renter.Bytes(),
		rental.StartTime,
		rental.EndTime,
		rental.ListingParams.Strategy.Bytes(),
		rental.ListingParams.Data,
	).Scan(&rental.ID)
	if err != nil {
		return 0, terror.Error(err)
	}
	return rental.ID, nil
}

func (s *Store) Rental(ctx context.Context, id int64) (*types.RentalAgreement, error) {
	q := `--sql
		SELECT ` + rentalColumns + `
		FROM rental_agreements
		WHERE id = $1
	`
	rental, err := scanRental(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rental, nil
}

func (s *Store) ActiveRentalForAsset(ctx context.Context, assetID types.AssetID, now time.Time) (*types.RentalAgreement, error) {
	q := `--sql
		SELECT ` + rentalColumns + `
		FROM rental_agreements
		WHERE asset_class = $1 AND asset_data = $2 AND end_time >= $3
		ORDER BY end_time DESC
		LIMIT 1
	`
	rental, err := scanRental(s.db.QueryRowContext(ctx, q, assetID.Class.Bytes(), assetID.Data, now))
	if err != nil {
		return nil, notFound(err)
	}
	return rental, nil
}

func (s *Store) HasRentalForAsset(ctx context.Context, assetID types.AssetID) (bool, error) {
	q := `--sql
		SELECT EXISTS (
			SELECT 1 FROM rental_agreements
			WHERE asset_class = $1 AND asset_data = $2
		)
	`
	exists := false
	err := s.db.QueryRowContext(ctx, q, assetID.Class.Bytes(), assetID.Data).Scan(&exists)
	if err != nil {
		return false, terror.Error(err)
	}
	return exists, nil
}

func (s *Store) UserRentalCount(ctx context.Context, renter common.Address, now time.Time) (int, error) {
	count := 0
	q := `SELECT count(*) FROM rental_agreements WHERE renter = $1 AND end_time >= $2`
	err := s.db.QueryRowContext(ctx, q, renter.Bytes(), now).Scan(&count)
	if err != nil {
		return 0, terror.Error(err)
	}
	return count, nil
}

func (s *Store) UserRentals(ctx context.Context, renter common.Address, now time.Time, offset, limit int) ([]*types.RentalAgreement, error) {
	q := `--sql
		SELECT ` + rentalColumns + `
		FROM rental_agreements
		WHERE renter = $1 AND end_time >= $2
		ORDER BY id
		OFFSET $3 LIMIT $4
	`
	rows, err := s.db.QueryContext(ctx, q, renter.Bytes(), now, offset, limit)
	if err != nil {
		return nil, terror.Error(err)
	}
	defer rows.Close()

	rentals := []*types.RentalAgreement{}
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, terror.Error(err)
		}
		rentals = append(rentals, rental)
	}
	if err = rows.Err(); err != nil {
		return nil, terror.Error(err)
	}
	return rentals, nil
}

func (s *Store) CollectionRentedValue(ctx context.Context, collectionID common.Hash, renter common.Address, now time.Time) (decimal.Decimal, error) {
	q := `--sql
		SELECT coalesce(sum(asset_value), 0)
		FROM rental_agreements
		WHERE collection_id = $1 AND renter = $2 AND end_time >= $3
	`
	total := decimal.Zero
	err := s.db.QueryRowContext(ctx, q, collectionID.Bytes(), renter.Bytes(), now).Scan(&total)
	if err != nil {
		return decimal.Zero, terror.Error(err)
	}
	return total, nil
}

func scanRental(row rowScanner) (*types.RentalAgreement, error) {
	rental := &types.RentalAgreement{}
	var classBytes, collectionBytes, renter, strategyBytes []byte

	err := row.Scan(
		&rental.ID,
		&classBytes,
		&rental.WarpedAsset.ID.Data,
		&rental.WarpedAsset.Value,
		&collectionBytes,
		&rental.ListingID,
		&renter,
		&rental.StartTime,
		&rental.EndTime,
		&strategyBytes,
		&rental.ListingParams.Data,
	)
	if err != nil {
		return nil, err
	}

	rental.WarpedAsset.ID.Class, err = types.AssetClassFromBytes(classBytes)
	if err != nil {
		return nil, err
	}
	rental.ListingParams.Strategy, err = types.ListingStrategyFromBytes(strategyBytes)
	if err != nil {
		return nil, err
	}
	rental.CollectionID = common.BytesToHash(collectionBytes)
	rental.Renter = common.BytesToAddress(renter)
	return rental, nil
}
