package db

import (
	"context"

	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

const warperColumns = `
address, original, asset_class, controller, universe_id, name, paused, created_at
`

func (s *Store) InsertWarper(ctx context.Context, warper *types.Warper) error {
	q := `--sql
		INSERT INTO warpers (address, original, asset_class, controller, universe_id, name, paused, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, q,
		warper.Address.Bytes(),
		warper.Original.Bytes(),
		warper.AssetClass.Bytes(),
		warper.Controller.Bytes(),
		warper.UniverseID,
		warper.Name,
		warper.Paused,
		warper.CreatedAt,
	)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

func (s *Store) Warper(ctx context.Context, address common.Address) (*types.Warper, error) {
	q := `--sql
		SELECT ` + warperColumns + `
		FROM warpers
		WHERE address = $1
	`
	warper, err := scanWarper(s.db.QueryRowContext(ctx, q, address.Bytes()))
	if err != nil {
		return nil, notFound(err)
	}
	return warper, nil
}

func (s *Store) UpdateWarper(ctx context.Context, warper *types.Warper) error {
	q := `--sql
		UPDATE warpers
		SET controller = $2, name = $3, paused = $4
		WHERE address = $1
	`
	result, err := s.db.ExecContext(ctx, q,
		warper.Address.Bytes(),
		warper.Controller.Bytes(),
		warper.Name,
		warper.Paused,
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

func (s *Store) DeleteWarper(ctx context.Context, address common.Address) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM warpers WHERE address = $1`, address.Bytes())
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

func (s *Store) UniverseWarperCount(ctx context.Context, universeID int64) (int, error) {
	count := 0
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM warpers WHERE universe_id = $1`, universeID).Scan(&count)
	if err != nil {
		return 0, terror.Error(err)
	}
	return count, nil
}

func (s *Store) UniverseWarpers(ctx context.Context, universeID int64, offset, limit int) ([]*types.Warper, error) {
	q := `--sql
		SELECT ` + warperColumns + `
		FROM warpers
		WHERE universe_id = $1
		ORDER BY created_at, address
		OFFSET $2 LIMIT $3
	`
	return s.queryWarpers(ctx, q, universeID, offset, limit)
}

func (s *Store) AssetWarpers(ctx context.Context, original common.Address, offset, limit int) ([]*types.Warper, error) {
	q := `--sql
		SELECT ` + warperColumns + `
		FROM warpers
		WHERE original = $1
		ORDER BY created_at, address
		OFFSET $2 LIMIT $3
	`
	return s.queryWarpers(ctx, q, original.Bytes(), offset, limit)
}

// SetWarperControllers reassigns the batch in one transaction so a partial
// failure leaves no warper half moved.
func (s *Store) SetWarperControllers(ctx context.Context, warpers []common.Address, controller common.Address) error {
	if s.conn == nil {
		return s.setWarperControllers(ctx, warpers, controller)
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return terror.Error(err)
	}
	defer tx.Rollback()

	err = (&Store{db: tx}).setWarperControllers(ctx, warpers, controller)
	if err != nil {
		return err
	}
	err = tx.Commit()
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

func (s *Store) setWarperControllers(ctx context.Context, warpers []common.Address, controller common.Address) error {
	for _, address := range warpers {
		result, err := s.db.ExecContext(ctx, `UPDATE warpers SET controller = $1 WHERE address = $2`, controller.Bytes(), address.Bytes())
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
	}
	return nil
}

func (s *Store) queryWarpers(ctx context.Context, q string, args ...interface{}) ([]*types.Warper, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, terror.Error(err)
	}
	defer rows.Close()

	warpers := []*types.Warper{}
	for rows.Next() {
		warper, err := scanWarper(rows)
		if err != nil {
			return nil, terror.Error(err)
		}
		warpers = append(warpers, warper)
	}
	if err = rows.Err(); err != nil {
		return nil, terror.Error(err)
	}
	return warpers, nil
}

func scanWarper(row rowScanner) (*types.Warper, error) {
	warper := &types.Warper{}
	var address, original, classBytes, controller []byte

	err := row.Scan(
		&address,
		&original,
		&classBytes,
		&controller,
		&warper.UniverseID,
		&warper.Name,
		&warper.Paused,
		&warper.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	warper.Address = common.BytesToAddress(address)
	warper.Original = common.BytesToAddress(original)
	warper.Controller = common.BytesToAddress(controller)
	warper.AssetClass, err = types.AssetClassFromBytes(classBytes)
	if err != nil {
		return nil, err
	}
	return warper, nil
}
