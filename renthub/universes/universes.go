// Package universes manages universe records and implements the role gate
// the other managers consult.
package universes

import (
	"context"
	"errors"
	"time"

	"renthub-services/renthub/rentlog"
	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/microcosm-cc/bluemonday"
	"github.com/ninja-software/terror/v2"
)

type Manager struct {
	store     store.UniverseStore
	roles     types.RoleGate
	sanitizer *bluemonday.Policy
}

func NewManager(s store.UniverseStore, roles types.RoleGate) *Manager {
	return &Manager{
		store:     s,
		roles:     roles,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// CreateUniverse registers a universe owned by the caller and returns its
// id. The fee percent is in basis points.
func (m *Manager) CreateUniverse(ctx context.Context, caller common.Address, name string, rentalFeePercent uint16) (int64, error) {
	universe := &types.Universe{
		Name:             m.sanitizer.Sanitize(name),
		Owner:            caller,
		RentalFeePercent: rentalFeePercent,
		CreatedAt:        time.Now(),
	}
	id, err := m.store.InsertUniverse(ctx, universe)
	if err != nil {
		return 0, terror.Error(err, "could not store the universe")
	}
	rentlog.L.Info().Int64("universe_id", id).Str("owner", caller.Hex()).Msg("universe created")
	return id, nil
}

func (m *Manager) SetUniverseName(ctx context.Context, caller common.Address, universeID int64, name string) error {
	universe, err := m.ownerUniverse(ctx, caller, universeID)
	if err != nil {
		return err
	}
	universe.Name = m.sanitizer.Sanitize(name)
	err = m.store.UpdateUniverse(ctx, universe)
	if err != nil {
		return terror.Error(err, "could not update the universe")
	}
	return nil
}

func (m *Manager) SetUniverseRentalFeePercent(ctx context.Context, caller common.Address, universeID int64, rentalFeePercent uint16) error {
	universe, err := m.ownerUniverse(ctx, caller, universeID)
	if err != nil {
		return err
	}
	universe.RentalFeePercent = rentalFeePercent
	err = m.store.UpdateUniverse(ctx, universe)
	if err != nil {
		return terror.Error(err, "could not update the universe")
	}
	return nil
}

// UniverseInfo returns the universe's name and fee percent.
func (m *Manager) UniverseInfo(ctx context.Context, universeID int64) (*types.Universe, error) {
	universe, err := m.store.Universe(ctx, universeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.UniverseIsNotRegisteredError{UniverseID: universeID}, "universe is not registered")
		}
		return nil, terror.Error(err)
	}
	return universe, nil
}

// IsUniverseOwner reports whether the account owns the universe without
// erroring on a mismatch.
func (m *Manager) IsUniverseOwner(ctx context.Context, universeID int64, account common.Address) (bool, error) {
	err := m.roles.RequireUniverseOwner(ctx, universeID, account)
	if err == nil {
		return true, nil
	}
	var mismatch *types.AccountIsNotUniverseOwnerError
	if errors.As(err, &mismatch) {
		return false, nil
	}
	return false, terror.Error(err)
}

func (m *Manager) ownerUniverse(ctx context.Context, caller common.Address, universeID int64) (*types.Universe, error) {
	universe, err := m.store.Universe(ctx, universeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.UniverseIsNotRegisteredError{UniverseID: universeID}, "universe is not registered")
		}
		return nil, terror.Error(err)
	}
	if universe.Owner != caller {
		return nil, terror.Error(&types.CallerIsNotUniverseOwnerError{
			UniverseID: universeID,
			Caller:     caller,
		}, "only the universe owner may do this")
	}
	return universe, nil
}
