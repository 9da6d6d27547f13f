package db

import (
	"context"
	"time"

	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
	"github.com/volatiletech/null/v8"
)

const listingColumns = `
id, group_id, lister, asset_class, asset_data, asset_value,
strategy, strategy_data, max_lock_period, locked_till,
immediate_payout, delisted, paused, created_at
`

func (s *Store) InsertListing(ctx context.Context, listing *types.Listing) (int64, error) {
	q := `--sql
		INSERT INTO listings (
			group_id, lister, asset_class, asset_data, asset_value,
			strategy, strategy_data, max_lock_period, locked_till,
			immediate_payout, delisted, paused, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var lockedTill null.Time
	if !listing.LockedTill.IsZero() {
		lockedTill = null.TimeFrom(listing.LockedTill)
	}
	err := s.db.QueryRowContext(ctx, q,
		listing.GroupID,
		listing.Lister.Bytes(),
		listing.Asset.ID.Class.Bytes(),
		listing.Asset.ID.Data,
		listing.Asset.Value,
		listing.Params.Strategy.Bytes(),
		listing.Params.Data,
		listing.MaxLockPeriod,
		lockedTill,
		listing.ImmediatePayout,
		listing.Delisted,
		listing.Paused,
		listing.CreatedAt,
	).Scan(&listing.ID)
	if err != nil {
		return 0, terror.Error(err)
	}
	return listing.ID, nil
}

func (s *Store) Listing(ctx context.Context, id int64) (*types.Listing, error) {
	q := `--sql
		SELECT ` + listingColumns + `
		FROM listings
		WHERE id = $1
	`
	listing, err := scanListing(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return listing, nil
}

func (s *Store) UpdateListing(ctx context.Context, listing *types.Listing) error {
	q := `--sql
		UPDATE listings
		SET group_id = $2,
			max_lock_period = $3,
			locked_till = $4,
			immediate_payout = $5,
			delisted = $6,
			paused = $7
		WHERE id = $1
	`
	var lockedTill null.Time
	if !listing.LockedTill.IsZero() {
		lockedTill = null.TimeFrom(listing.LockedTill)
	}
	result, err := s.db.ExecContext(ctx, q,
		listing.ID,
		listing.GroupID,
		listing.MaxLockPeriod,
		lockedTill,
		listing.ImmediatePayout,
		listing.Delisted,
		listing.Paused,
	)
	if err != nil {
		return terror.Error(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return terror.Error(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteListing(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return terror.Error(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return terror.Error(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListingCount(ctx context.Context) (int, error) {
	count := 0
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM listings`).Scan(&count)
	if err != nil {
		return 0, terror.Error(err)
	}
	return count, nil
}

func (s *Store) UserListingCount(ctx context.Context, lister common.Address) (int, error) {
	count := 0
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM listings WHERE lister = $1`, lister.Bytes()).Scan(&count)
	if err != nil {
		return 0, terror.Error(err)
	}
	return count, nil
}

func (s *Store) AssetListingCount(ctx context.Context, original common.Address) (int, error) {
	count := 0
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM listings WHERE substring(asset_data from 1 for 20) = $1`, original.Bytes()).Scan(&count)
	if err != nil {
		return 0, terror.Error(err)
	}
	return count, nil
}

func (s *Store) Listings(ctx context.Context, offset, limit int) ([]*types.Listing, error) {
	q := `--sql
		SELECT ` + listingColumns + `
		FROM listings
		ORDER BY id
		OFFSET $1 LIMIT $2
	`
	return s.queryListings(ctx, q, offset, limit)
}

func (s *Store) UserListings(ctx context.Context, lister common.Address, offset, limit int) ([]*types.Listing, error) {
	q := `--sql
		SELECT ` + listingColumns + `
		FROM listings
		WHERE lister = $1
		ORDER BY id
		OFFSET $2 LIMIT $3
	`
	return s.queryListings(ctx, q, lister.Bytes(), offset, limit)
}

func (s *Store) AssetListings(ctx context.Context, original common.Address, offset, limit int) ([]*types.Listing, error) {
	q := `--sql
		SELECT ` + listingColumns + `
		FROM listings
		WHERE substring(asset_data from 1 for 20) = $1
		ORDER BY id
		OFFSET $2 LIMIT $3
	`
	return s.queryListings(ctx, q, original.Bytes(), offset, limit)
}

func (s *Store) queryListings(ctx context.Context, q string, args ...interface{}) ([]*types.Listing, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, terror.Error(err)
	}
	defer rows.Close()

	listings := []*types.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, terror.Error(err)
		}
		listings = append(listings, listing)
	}
	if err = rows.Err(); err != nil {
		return nil, terror.Error(err)
	}
	return listings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*types.Listing, error) {
	listing := &types.Listing{}
	var lister, classBytes, strategyBytes []byte
	var lockedTill null.Time
	var createdAt time.Time

	err := row.Scan(
		&listing.ID,
		&listing.GroupID,
		&lister,
		&classBytes,
		&listing.Asset.ID.Data,
		&listing.Asset.Value,
		&strategyBytes,
		&listing.Params.Data,
		&listing.MaxLockPeriod,
		&lockedTill,
		&listing.ImmediatePayout,
		&listing.Delisted,
		&listing.Paused,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	listing.Lister = common.BytesToAddress(lister)
	listing.Asset.ID.Class, err = types.AssetClassFromBytes(classBytes)
	if err != nil {
		return nil, err
	}
	listing.Params.Strategy, err = types.ListingStrategyFromBytes(strategyBytes)
	if err != nil {
		return nil, err
	}
	if lockedTill.Valid {
		listing.LockedTill = lockedTill.Time
	}
	listing.CreatedAt = createdAt
	return listing, nil
}
