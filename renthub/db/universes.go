package db

import (
	"context"

	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

func (s *Store) InsertUniverse(ctx context.Context, universe *types.Universe) (int64, error) {
	q := `--sql
		INSERT INTO universes (name, owner, rental_fee_percent, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, q,
		universe.Name,
		universe.Owner.Bytes(),
		universe.RentalFeePercent,
		universe.CreatedAt,
	).Scan(&universe.ID)
	if err != nil {
		return 0, terror.Error(err)
	}
	return universe.ID, nil
}

func (s *Store) Universe(ctx context.Context, id int64) (*types.Universe, error) {
	q := `--sql
		SELECT id, name, owner, rental_fee_percent, created_at
		FROM universes
		WHERE id = $1
	`
	universe := &types.Universe{}
	var owner []byte
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&universe.ID,
		&universe.Name,
		&owner,
		&universe.RentalFeePercent,
		&universe.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	universe.Owner = common.BytesToAddress(owner)
	return universe, nil
}

func (s *Store) UpdateUniverse(ctx context.Context, universe *types.Universe) error {
	q := `--sql
		UPDATE universes
		SET name = $2, rental_fee_percent = $3
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, q, universe.ID, universe.Name, universe.RentalFeePercent)
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
