package db

import (
	"context"

	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

func (s *Store) PutCustody(ctx context.Context, record *store.CustodyRecord) error {
	q := `--sql
		INSERT INTO custody (asset_class, asset_data, asset_value, owner, deposited_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, q,
		record.Asset.ID.Class.Bytes(),
		record.Asset.ID.Data,
		record.Asset.Value,
		record.Owner.Bytes(),
		record.DepositedAt,
	)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

func (s *Store) Custody(ctx context.Context, assetID types.AssetID) (*store.CustodyRecord, error) {
	q := `--sql
		SELECT asset_class, asset_data, asset_value, owner, deposited_at
		FROM custody
		WHERE asset_class = $1 AND asset_data = $2
	`
	record := &store.CustodyRecord{}
	var classBytes, owner []byte
	err := s.db.QueryRowContext(ctx, q, assetID.Class.Bytes(), assetID.Data).Scan(
		&classBytes,
		&record.Asset.ID.Data,
		&record.Asset.Value,
		&owner,
		&record.DepositedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	record.Asset.ID.Class, err = types.AssetClassFromBytes(classBytes)
	if err != nil {
		return nil, terror.Error(err)
	}
	record.Owner = common.BytesToAddress(owner)
	return record, nil
}

func (s *Store) DeleteCustody(ctx context.Context, assetID types.AssetID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM custody WHERE asset_class = $1 AND asset_data = $2`, assetID.Class.Bytes(), assetID.Data)
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
