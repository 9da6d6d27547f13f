package types

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// RoleGate is the access control surface consumed by the managers. Policy
// definition lives outside this service; the gate only answers whether an
// account currently holds a capability.
type RoleGate interface {
	RequireAdmin(ctx context.Context, account common.Address) error
	RequireSupervisor(ctx context.Context, account common.Address) error
	RequireUniverseOwner(ctx context.Context, universeID int64, account common.Address) error
}
