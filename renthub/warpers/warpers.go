// Package warpers manages warper registration and lifecycle. A warper is
// the per universe contract that presents an original asset inside that
// universe; rentals always go through a registered, unpaused warper.
package warpers

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
	store     store.WarperStore
	roles     types.RoleGate
	sanitizer *bluemonday.Policy
}

func NewManager(s store.WarperStore, roles types.RoleGate) *Manager {
	return &Manager{
		store:     s,
		roles:     roles,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// RegisterWarper records a warper for the universe. Universe owner gated.
func (m *Manager) RegisterWarper(ctx context.Context, caller common.Address, warper *types.Warper) error {
	err := m.roles.RequireUniverseOwner(ctx, warper.UniverseID, caller)
	if err != nil {
		return terror.Error(err, "caller may not register warpers for this universe")
	}

	warper.Name = m.sanitizer.Sanitize(warper.Name)
	warper.Paused = false
	warper.CreatedAt = time.Now()
	err = m.store.InsertWarper(ctx, warper)
	if err != nil {
		return terror.Error(err, "could not store the warper")
	}
	rentlog.L.Info().
		Str("warper", warper.Address.Hex()).
		Str("original", warper.Original.Hex()).
		Int64("universe_id", warper.UniverseID).
		Msg("warper registered")
	return nil
}

// DeregisterWarper removes the warper record. Universe owner gated.
func (m *Manager) DeregisterWarper(ctx context.Context, caller common.Address, address common.Address) error {
	warper, err := m.ownedWarper(ctx, caller, address)
	if err != nil {
		return err
	}
	err = m.store.DeleteWarper(ctx, warper.Address)
	if err != nil {
		return terror.Error(err, "could not remove the warper")
	}
	rentlog.L.Info().Str("warper", address.Hex()).Msg("warper deregistered")
	return nil
}

// PauseWarper stops new rentals through the warper. Active agreements run
// to their end time untouched.
func (m *Manager) PauseWarper(ctx context.Context, caller common.Address, address common.Address) error {
	warper, err := m.ownedWarper(ctx, caller, address)
	if err != nil {
		return err
	}
	if warper.Paused {
		return terror.Error(&types.WarperIsPausedError{Warper: address}, "warper is already paused")
	}
	warper.Paused = true
	err = m.store.UpdateWarper(ctx, warper)
	if err != nil {
		return terror.Error(err, "could not update the warper")
	}
	return nil
}

func (m *Manager) UnpauseWarper(ctx context.Context, caller common.Address, address common.Address) error {
	warper, err := m.ownedWarper(ctx, caller, address)
	if err != nil {
		return err
	}
	if !warper.Paused {
		return terror.Error(&types.WarperIsNotPausedError{Warper: address}, "warper is not paused")
	}
	warper.Paused = false
	err = m.store.UpdateWarper(ctx, warper)
	if err != nil {
		return terror.Error(err, "could not update the warper")
	}
	return nil
}

// SetWarperControllers points a batch of warpers at a new controller in
// one call. Supervisor gated.
func (m *Manager) SetWarperControllers(ctx context.Context, caller common.Address, addresses []common.Address, controller common.Address) error {
	err := m.roles.RequireSupervisor(ctx, caller)
	if err != nil {
		return terror.Error(err, "caller may not reassign warper controllers")
	}
	for _, address := range addresses {
		_, err = m.store.Warper(ctx, address)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return terror.Error(&types.WarperIsNotRegisteredError{Warper: address}, "warper is not registered")
			}
			return terror.Error(err)
		}
	}
	err = m.store.SetWarperControllers(ctx, addresses, controller)
	if err != nil {
		return terror.Error(err, "could not reassign warper controllers")
	}
	rentlog.L.Info().Int("warpers", len(addresses)).Str("controller", controller.Hex()).Msg("warper controllers reassigned")
	return nil
}

// WarperInfo returns the stored warper.
func (m *Manager) WarperInfo(ctx context.Context, address common.Address) (*types.Warper, error) {
	warper, err := m.store.Warper(ctx, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.WarperIsNotRegisteredError{Warper: address}, "warper is not registered")
		}
		return nil, terror.Error(err)
	}
	return warper, nil
}

func (m *Manager) UniverseWarperCount(ctx context.Context, universeID int64) (int, error) {
	count, err := m.store.UniverseWarperCount(ctx, universeID)
	if err != nil {
		return 0, terror.Error(err)
	}
	return count, nil
}

func (m *Manager) UniverseWarpers(ctx context.Context, universeID int64, offset, limit int) ([]*types.Warper, error) {
	warpers, err := m.store.UniverseWarpers(ctx, universeID, offset, limit)
	if err != nil {
		return nil, terror.Error(err)
	}
	return warpers, nil
}

func (m *Manager) AssetWarpers(ctx context.Context, original common.Address, offset, limit int) ([]*types.Warper, error) {
	warpers, err := m.store.AssetWarpers(ctx, original, offset, limit)
	if err != nil {
		return nil, terror.Error(err)
	}
	return warpers, nil
}

// ownedWarper fetches a warper for a universe owner gated mutation.
func (m *Manager) ownedWarper(ctx context.Context, caller common.Address, address common.Address) (*types.Warper, error) {
	warper, err := m.store.Warper(ctx, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, terror.Error(&types.WarperIsNotRegisteredError{Warper: address}, "warper is not registered")
		}
		return nil, terror.Error(err)
	}
	err = m.roles.RequireUniverseOwner(ctx, warper.UniverseID, caller)
	if err != nil {
		return nil, terror.Error(err, "caller may not manage this warper")
	}
	return warper, nil
}
