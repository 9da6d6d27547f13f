package universes

import (
	"context"
	"errors"

	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

// Gate answers role checks from the static admin and supervisor sets plus
// universe ownership records. Admins pass every check.
type Gate struct {
	store       store.UniverseStore
	admins      map[common.Address]struct{}
	supervisors map[common.Address]struct{}
}

func NewGate(s store.UniverseStore, admins, supervisors []common.Address) *Gate {
	g := &Gate{
		store:       s,
		admins:      map[common.Address]struct{}{},
		supervisors: map[common.Address]struct{}{},
	}
	for _, a := range admins {
		g.admins[a] = struct{}{}
	}
	for _, s := range supervisors {
		g.supervisors[s] = struct{}{}
	}
	return g
}

func (g *Gate) RequireAdmin(ctx context.Context, account common.Address) error {
	if _, ok := g.admins[account]; ok {
		return nil
	}
	return terror.Error(types.ErrCallerIsNotAdmin, "caller is not an admin")
}

func (g *Gate) RequireSupervisor(ctx context.Context, account common.Address) error {
	if _, ok := g.admins[account]; ok {
		return nil
	}
	if _, ok := g.supervisors[account]; ok {
		return nil
	}
	return terror.Error(types.ErrCallerIsNotSupervisor, "caller is not a supervisor")
}

func (g *Gate) RequireUniverseOwner(ctx context.Context, universeID int64, account common.Address) error {
	universe, err := g.store.Universe(ctx, universeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return terror.Error(&types.UniverseIsNotRegisteredError{UniverseID: universeID}, "universe is not registered")
		}
		return terror.Error(err)
	}
	if universe.Owner != account {
		return terror.Error(&types.AccountIsNotUniverseOwnerError{
			UniverseID: universeID,
			Account:    account,
		}, "account is not the universe owner")
	}
	return nil
}
