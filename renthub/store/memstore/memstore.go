// Package memstore is the in memory store implementation. It backs unit
// tests and the dev serve mode; the postgres implementation in renthub/db
// is the production backend.
package memstore

import (
	"context"
	"sort"
	"time"

	"renthub-services/renthub/store"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sasha-s/go-deadlock"
	"github.com/shopspring/decimal"
)

// Store serialises access to a state with a read write mutex. Atomic holds
// the write lock across the whole closure and restores a snapshot if it
// fails, so every write inside state must replace map entries rather than
// mutate them in place.
type Store struct {
	mu   deadlock.RWMutex
	data *state
}

type state struct {
	nextListingID  int64
	nextRentalID   int64
	nextUniverseID int64

	listings  map[int64]*types.Listing
	rentals   map[int64]*types.RentalAgreement
	warpers   map[common.Address]*types.Warper
	universes map[int64]*types.Universe
	balances  map[payeeKey]map[common.Address]decimal.Decimal
	custody   map[string]*store.CustodyRecord
}

var (
	_ store.Store   = (*Store)(nil)
	_ store.StoreTx = (*state)(nil)
)

type payeeKey struct {
	kind       types.PayeeKind
	universeID int64
	account    common.Address
}

func keyFor(p types.Payee) payeeKey {
	return payeeKey{kind: p.Kind, universeID: p.UniverseID, account: p.Account}
}

func assetKey(id types.AssetID) string {
	return string(id.Class.Bytes()) + string(id.Data)
}

func New() *Store {
	return &Store{data: newState()}
}

func newState() *state {
	return &state{
		listings:  map[int64]*types.Listing{},
		rentals:   map[int64]*types.RentalAgreement{},
		warpers:   map[common.Address]*types.Warper{},
		universes: map[int64]*types.Universe{},
		balances:  map[payeeKey]map[common.Address]decimal.Decimal{},
		custody:   map[string]*store.CustodyRecord{},
	}
}

// clone snapshots the maps. Entry pointers are shared with the original;
// that is safe because writes replace entries. Balance inner maps are the
// exception, they are mutated in place and so copied here.
func (d *state) clone() *state {
	c := &state{
		nextListingID:  d.nextListingID,
		nextRentalID:   d.nextRentalID,
		nextUniverseID: d.nextUniverseID,
		listings:       make(map[int64]*types.Listing, len(d.listings)),
		rentals:        make(map[int64]*types.RentalAgreement, len(d.rentals)),
		warpers:        make(map[common.Address]*types.Warper, len(d.warpers)),
		universes:      make(map[int64]*types.Universe, len(d.universes)),
		balances:       make(map[payeeKey]map[common.Address]decimal.Decimal, len(d.balances)),
		custody:        make(map[string]*store.CustodyRecord, len(d.custody)),
	}
	for id, l := range d.listings {
		c.listings[id] = l
	}
	for id, r := range d.rentals {
		c.rentals[id] = r
	}
	for addr, w := range d.warpers {
		c.warpers[addr] = w
	}
	for id, u := range d.universes {
		c.universes[id] = u
	}
	for k, tokens := range d.balances {
		inner := make(map[common.Address]decimal.Decimal, len(tokens))
		for token, amount := range tokens {
			inner[token] = amount
		}
		c.balances[k] = inner
	}
	for k, rec := range d.custody {
		c.custody[k] = rec
	}
	return c
}

// Atomic runs fn under the write lock. If fn fails the pre-call snapshot is
// restored, discarding every mutation fn made.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	err := fn(s.data)
	if err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

// copyListing and copyRental also copy the asset and params byte slices so
// a caller mutating a returned record cannot reach the stored one.
func copyListing(l *types.Listing) *types.Listing {
	c := *l
	c.Asset.ID.Data = copyBytes(l.Asset.ID.Data)
	c.Params.Data = copyBytes(l.Params.Data)
	return &c
}

func copyRental(r *types.RentalAgreement) *types.RentalAgreement {
	c := *r
	c.WarpedAsset.ID.Data = copyBytes(r.WarpedAsset.ID.Data)
	c.ListingParams.Data = copyBytes(r.ListingParams.Data)
	return &c
}

func (d *state) InsertListing(ctx context.Context, listing *types.Listing) (int64, error) {
	d.nextListingID++
	listing.ID = d.nextListingID
	d.listings[listing.ID] = copyListing(listing)
	return listing.ID, nil
}

func (d *state) Listing(ctx context.Context, id int64) (*types.Listing, error) {
	l, ok := d.listings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyListing(l), nil
}

func (d *state) UpdateListing(ctx context.Context, listing *types.Listing) error {
	if _, ok := d.listings[listing.ID]; !ok {
		return store.ErrNotFound
	}
	d.listings[listing.ID] = copyListing(listing)
	return nil
}

func (d *state) DeleteListing(ctx context.Context, id int64) error {
	if _, ok := d.listings[id]; !ok {
		return store.ErrNotFound
	}
	delete(d.listings, id)
	return nil
}

func (d *state) ListingCount(ctx context.Context) (int, error) {
	return len(d.listings), nil
}

func (d *state) UserListingCount(ctx context.Context, lister common.Address) (int, error) {
	count := 0
	for _, l := range d.listings {
		if l.Lister == lister {
			count++
		}
	}
	return count, nil
}

func (d *state) AssetListingCount(ctx context.Context, original common.Address) (int, error) {
	count := 0
	for _, l := range d.listings {
		if token, err := l.Asset.ID.Token(); err == nil && token == original {
			count++
		}
	}
	return count, nil
}

func (d *state) sortedListings(match func(*types.Listing) bool) []*types.Listing {
	out := []*types.Listing{}
	for _, l := range d.listings {
		if match(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// window clamps a negative offset or limit to zero rather than panicking on
// the slice expression.
func window(listings []*types.Listing, offset, limit int) []*types.Listing {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(listings) {
		return []*types.Listing{}
	}
	end := offset + limit
	if end > len(listings) {
		end = len(listings)
	}
	out := make([]*types.Listing, 0, end-offset)
	for _, l := range listings[offset:end] {
		out = append(out, copyListing(l))
	}
	return out
}

func (d *state) Listings(ctx context.Context, offset, limit int) ([]*types.Listing, error) {
	return window(d.sortedListings(func(*types.Listing) bool { return true }), offset, limit), nil
}

func (d *state) UserListings(ctx context.Context, lister common.Address, offset, limit int) ([]*types.Listing, error) {
	return window(d.sortedListings(func(l *types.Listing) bool { return l.Lister == lister }), offset, limit), nil
}

func (d *state) AssetListings(ctx context.Context, original common.Address, offset, limit int) ([]*types.Listing, error) {
	return window(d.sortedListings(func(l *types.Listing) bool {
		token, err := l.Asset.ID.Token()
		return err == nil && token == original
	}), offset, limit), nil
}

func (d *state) InsertRental(ctx context.Context, rental *types.RentalAgreement) (int64, error) {
	d.nextRentalID++
	rental.ID = d.nextRentalID
	d.rentals[rental.ID] = copyRental(rental)
	return rental.ID, nil
}

func (d *state) Rental(ctx context.Context, id int64) (*types.RentalAgreement, error) {
	r, ok := d.rentals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyRental(r), nil
}

func (d *state) ActiveRentalForAsset(ctx context.Context, assetID types.AssetID, now time.Time) (*types.RentalAgreement, error) {
	for _, r := range d.rentals {
		if r.WarpedAsset.ID.Equal(assetID) && !r.Expired(now) {
			return copyRental(r), nil
		}
	}
	return nil, store.ErrNotFound
}

func (d *state) HasRentalForAsset(ctx context.Context, assetID types.AssetID) (bool, error) {
	for _, r := range d.rentals {
		if r.WarpedAsset.ID.Equal(assetID) {
			return true, nil
		}
	}
	return false, nil
}

func (d *state) activeUserRentals(renter common.Address, now time.Time) []*types.RentalAgreement {
	out := []*types.RentalAgreement{}
	for _, r := range d.rentals {
		if r.Renter == renter && !r.Expired(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *state) UserRentalCount(ctx context.Context, renter common.Address, now time.Time) (int, error) {
	return len(d.activeUserRentals(renter, now)), nil
}

func (d *state) UserRentals(ctx context.Context, renter common.Address, now time.Time, offset, limit int) ([]*types.RentalAgreement, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	active := d.activeUserRentals(renter, now)
	if offset >= len(active) {
		return []*types.RentalAgreement{}, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}
	out := make([]*types.RentalAgreement, 0, end-offset)
	for _, r := range active[offset:end] {
		out = append(out, copyRental(r))
	}
	return out, nil
}

func (d *state) CollectionRentedValue(ctx context.Context, collectionID common.Hash, renter common.Address, now time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range d.rentals {
		if r.CollectionID == collectionID && r.Renter == renter && !r.Expired(now) {
			total = total.Add(r.WarpedAsset.Value)
		}
	}
	return total, nil
}

func (d *state) AddBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error {
	k := keyFor(payee)
	if d.balances[k] == nil {
		d.balances[k] = map[common.Address]decimal.Decimal{}
	}
	d.balances[k][token] = d.balances[k][token].Add(amount)
	return nil
}

func (d *state) SubBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error {
	k := keyFor(payee)
	if d.balances[k] == nil {
		d.balances[k] = map[common.Address]decimal.Decimal{}
	}
	d.balances[k][token] = d.balances[k][token].Sub(amount)
	return nil
}

func (d *state) Balance(ctx context.Context, payee types.Payee, token common.Address) (decimal.Decimal, error) {
	tokens, ok := d.balances[keyFor(payee)]
	if !ok {
		return decimal.Zero, nil
	}
	return tokens[token], nil
}

func (d *state) Balances(ctx context.Context, payee types.Payee) ([]*types.TokenBalance, error) {
	out := []*types.TokenBalance{}
	for token, amount := range d.balances[keyFor(payee)] {
		if amount.IsZero() {
			continue
		}
		out = append(out, &types.TokenBalance{Token: token, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Token.Hex() < out[j].Token.Hex()
	})
	return out, nil
}

func (d *state) InsertWarper(ctx context.Context, warper *types.Warper) error {
	c := *warper
	d.warpers[warper.Address] = &c
	return nil
}

func (d *state) Warper(ctx context.Context, address common.Address) (*types.Warper, error) {
	w, ok := d.warpers[address]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *w
	return &c, nil
}

func (d *state) UpdateWarper(ctx context.Context, warper *types.Warper) error {
	if _, ok := d.warpers[warper.Address]; !ok {
		return store.ErrNotFound
	}
	c := *warper
	d.warpers[warper.Address] = &c
	return nil
}

func (d *state) DeleteWarper(ctx context.Context, address common.Address) error {
	if _, ok := d.warpers[address]; !ok {
		return store.ErrNotFound
	}
	delete(d.warpers, address)
	return nil
}

func (d *state) sortedWarpers(match func(*types.Warper) bool) []*types.Warper {
	out := []*types.Warper{}
	for _, w := range d.warpers {
		if match(w) {
			c := *w
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Address.Hex() < out[j].Address.Hex()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func warperWindow(warpers []*types.Warper, offset, limit int) []*types.Warper {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(warpers) {
		return []*types.Warper{}
	}
	end := offset + limit
	if end > len(warpers) {
		end = len(warpers)
	}
	return warpers[offset:end]
}

func (d *state) UniverseWarperCount(ctx context.Context, universeID int64) (int, error) {
	count := 0
	for _, w := range d.warpers {
		if w.UniverseID == universeID {
			count++
		}
	}
	return count, nil
}

func (d *state) UniverseWarpers(ctx context.Context, universeID int64, offset, limit int) ([]*types.Warper, error) {
	return warperWindow(d.sortedWarpers(func(w *types.Warper) bool { return w.UniverseID == universeID }), offset, limit), nil
}

func (d *state) AssetWarpers(ctx context.Context, original common.Address, offset, limit int) ([]*types.Warper, error) {
	return warperWindow(d.sortedWarpers(func(w *types.Warper) bool { return w.Original == original }), offset, limit), nil
}

func (d *state) SetWarperControllers(ctx context.Context, warpers []common.Address, controller common.Address) error {
	for _, addr := range warpers {
		w, ok := d.warpers[addr]
		if !ok {
			return store.ErrNotFound
		}
		c := *w
		c.Controller = controller
		d.warpers[addr] = &c
	}
	return nil
}

func (d *state) InsertUniverse(ctx context.Context, universe *types.Universe) (int64, error) {
	d.nextUniverseID++
	universe.ID = d.nextUniverseID
	c := *universe
	d.universes[universe.ID] = &c
	return universe.ID, nil
}

func (d *state) Universe(ctx context.Context, id int64) (*types.Universe, error) {
	u, ok := d.universes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (d *state) UpdateUniverse(ctx context.Context, universe *types.Universe) error {
	if _, ok := d.universes[universe.ID]; !ok {
		return store.ErrNotFound
	}
	c := *universe
	d.universes[universe.ID] = &c
	return nil
}

func (d *state) PutCustody(ctx context.Context, record *store.CustodyRecord) error {
	c := *record
	c.Asset.ID.Data = copyBytes(record.Asset.ID.Data)
	d.custody[assetKey(record.Asset.ID)] = &c
	return nil
}

func (d *state) Custody(ctx context.Context, assetID types.AssetID) (*store.CustodyRecord, error) {
	rec, ok := d.custody[assetKey(assetID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *rec
	c.Asset.ID.Data = copyBytes(rec.Asset.ID.Data)
	return &c, nil
}

func (d *state) DeleteCustody(ctx context.Context, assetID types.AssetID) error {
	if _, ok := d.custody[assetKey(assetID)]; !ok {
		return store.ErrNotFound
	}
	delete(d.custody, assetKey(assetID))
	return nil
}

func (s *Store) InsertListing(ctx context.Context, listing *types.Listing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertListing(ctx, listing)
}

func (s *Store) Listing(ctx context.Context, id int64) (*types.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Listing(ctx, id)
}

func (s *Store) UpdateListing(ctx context.Context, listing *types.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UpdateListing(ctx, listing)
}

func (s *Store) DeleteListing(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DeleteListing(ctx, id)
}

func (s *Store) ListingCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ListingCount(ctx)
}

func (s *Store) UserListingCount(ctx context.Context, lister common.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserListingCount(ctx, lister)
}

func (s *Store) AssetListingCount(ctx context.Context, original common.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AssetListingCount(ctx, original)
}

func (s *Store) Listings(ctx context.Context, offset, limit int) ([]*types.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Listings(ctx, offset, limit)
}

func (s *Store) UserListings(ctx context.Context, lister common.Address, offset, limit int) ([]*types.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserListings(ctx, lister, offset, limit)
}

func (s *Store) AssetListings(ctx context.Context, original common.Address, offset, limit int) ([]*types.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AssetListings(ctx, original, offset, limit)
}

func (s *Store) InsertRental(ctx context.Context, rental *types.RentalAgreement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertRental(ctx, rental)
}

func (s *Store) Rental(ctx context.Context, id int64) (*types.RentalAgreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Rental(ctx, id)
}

func (s *Store) ActiveRentalForAsset(ctx context.Context, assetID types.AssetID, now time.Time) (*types.RentalAgreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.ActiveRentalForAsset(ctx, assetID, now)
}

func (s *Store) HasRentalForAsset(ctx context.Context, assetID types.AssetID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.HasRentalForAsset(ctx, assetID)
}

func (s *Store) UserRentalCount(ctx context.Context, renter common.Address, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserRentalCount(ctx, renter, now)
}

func (s *Store) UserRentals(ctx context.Context, renter common.Address, now time.Time, offset, limit int) ([]*types.RentalAgreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UserRentals(ctx, renter, now, offset, limit)
}

func (s *Store) CollectionRentedValue(ctx context.Context, collectionID common.Hash, renter common.Address, now time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.CollectionRentedValue(ctx, collectionID, renter, now)
}

func (s *Store) AddBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.AddBalance(ctx, payee, token, amount)
}

func (s *Store) SubBalance(ctx context.Context, payee types.Payee, token common.Address, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SubBalance(ctx, payee, token, amount)
}

func (s *Store) Balance(ctx context.Context, payee types.Payee, token common.Address) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Balance(ctx, payee, token)
}

func (s *Store) Balances(ctx context.Context, payee types.Payee) ([]*types.TokenBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Balances(ctx, payee)
}

func (s *Store) InsertWarper(ctx context.Context, warper *types.Warper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertWarper(ctx, warper)
}

func (s *Store) Warper(ctx context.Context, address common.Address) (*types.Warper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Warper(ctx, address)
}

func (s *Store) UpdateWarper(ctx context.Context, warper *types.Warper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UpdateWarper(ctx, warper)
}

func (s *Store) DeleteWarper(ctx context.Context, address common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DeleteWarper(ctx, address)
}

func (s *Store) UniverseWarperCount(ctx context.Context, universeID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UniverseWarperCount(ctx, universeID)
}

func (s *Store) UniverseWarpers(ctx context.Context, universeID int64, offset, limit int) ([]*types.Warper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.UniverseWarpers(ctx, universeID, offset, limit)
}

func (s *Store) AssetWarpers(ctx context.Context, original common.Address, offset, limit int) ([]*types.Warper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AssetWarpers(ctx, original, offset, limit)
}

func (s *Store) SetWarperControllers(ctx context.Context, warpers []common.Address, controller common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.SetWarperControllers(ctx, warpers, controller)
}

func (s *Store) InsertUniverse(ctx context.Context, universe *types.Universe) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.InsertUniverse(ctx, universe)
}

func (s *Store) Universe(ctx context.Context, id int64) (*types.Universe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Universe(ctx, id)
}

func (s *Store) UpdateUniverse(ctx context.Context, universe *types.Universe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UpdateUniverse(ctx, universe)
}

func (s *Store) PutCustody(ctx context.Context, record *store.CustodyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.PutCustody(ctx, record)
}

func (s *Store) Custody(ctx context.Context, assetID types.AssetID) (*store.CustodyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Custody(ctx, assetID)
}

func (s *Store) DeleteCustody(ctx context.Context, assetID types.AssetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DeleteCustody(ctx, assetID)
}
