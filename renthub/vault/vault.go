// Package vault models asset custody. The managers never hold assets
// directly; they hand them to the class vault on listing and pull them
// back on withdrawal.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

// Vault methods take the custody store per call so the listing manager can
// pass the transaction handle it already holds, keeping the custody write
// and the listing write in one atomic unit.
type Vault interface {
	DepositFor(ctx context.Context, custody store.CustodyStore, owner common.Address, asset types.Asset) error
	WithdrawTo(ctx context.Context, custody store.CustodyStore, owner common.Address, asset types.Asset) error
}

// TrackingVault keeps custody records in the store. The on chain transfer
// itself is the warper contract's concern; this vault is the service side
// source of truth for who may reclaim what.
type TrackingVault struct{}

func NewTrackingVault() *TrackingVault {
	return &TrackingVault{}
}

func (v *TrackingVault) DepositFor(ctx context.Context, custody store.CustodyStore, owner common.Address, asset types.Asset) error {
	_, err := custody.Custody(ctx, asset.ID)
	if err == nil {
		return terror.Error(fmt.Errorf("asset already in custody"))
	}
	if !errors.Is(err, store.ErrNotFound) {
		return terror.Error(err)
	}

	err = custody.PutCustody(ctx, &store.CustodyRecord{
		Asset:       asset,
		Owner:       owner,
		DepositedAt: time.Now(),
	})
	if err != nil {
		return terror.Error(err)
	}
	return nil
}

func (v *TrackingVault) WithdrawTo(ctx context.Context, custody store.CustodyStore, owner common.Address, asset types.Asset) error {
	rec, err := custody.Custody(ctx, asset.ID)
	if err != nil {
		return terror.Error(err, "asset is not in custody")
	}
	if rec.Owner != owner {
		return terror.Error(fmt.Errorf("asset held for %s, not %s", rec.Owner.Hex(), owner.Hex()))
	}

	err = custody.DeleteCustody(ctx, asset.ID)
	if err != nil {
		return terror.Error(err)
	}
	return nil
}
