package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"renthub-services/renthub/controllers"
	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

// ListingCreateRequest lists one ERC721 asset at a fixed per second rate.
type ListingCreateRequest struct {
	Token           string `json:"token"`
	TokenID         string `json:"token_id"`
	BaseRate        string `json:"base_rate"`
	MaxLockPeriod   uint32 `json:"max_lock_period"`
	ImmediatePayout bool   `json:"immediate_payout"`
}

type ListingCreateResponse struct {
	ListingID      int64 `json:"listing_id"`
	ListingGroupID int64 `json:"listing_group_id"`
}

func (api *API) ListingCreate(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	req := &ListingCreateRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	if !common.IsHexAddress(req.Token) {
		return http.StatusBadRequest, terror.Error(fmt.Errorf("invalid token address %q", req.Token), "invalid token address")
	}
	tokenID, ok := new(big.Int).SetString(req.TokenID, 10)
	if !ok {
		return http.StatusBadRequest, terror.Error(fmt.Errorf("invalid token id %q", req.TokenID), "invalid token id")
	}
	baseRate, err := decimal.NewFromString(req.BaseRate)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid base rate")
	}

	asset := types.NewNFTAsset(types.AssetClassERC721, common.HexToAddress(req.Token), tokenID)
	params := types.ListingParams{
		Strategy: types.ListingStrategyFixedPrice,
		Data:     controllers.EncodeFixedPriceData(baseRate),
	}

	id, groupID, err := api.Listings.ListAsset(r.Context(), account, asset, params, req.MaxLockPeriod, req.ImmediatePayout)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, &ListingCreateResponse{ListingID: id, ListingGroupID: groupID})
}

func (api *API) ListingGet(w http.ResponseWriter, r *http.Request) (int, error) {
	listingID, err := int64Param(r, "listing_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	listing, err := api.Listings.ListingInfo(r.Context(), listingID)
	if err != nil {
		return http.StatusNotFound, err
	}
	return writeJSON(w, listing)
}

func (api *API) ListingDelist(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	listingID, err := int64Param(r, "listing_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Listings.DelistAsset(r.Context(), account, listingID)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) ListingWithdraw(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	listingID, err := int64Param(r, "listing_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Listings.WithdrawAsset(r.Context(), account, listingID)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) ListingPause(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	listingID, err := int64Param(r, "listing_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Listings.PauseListing(r.Context(), account, listingID)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) ListingUnpause(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	listingID, err := int64Param(r, "listing_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	err = api.Listings.UnpauseListing(r.Context(), account, listingID)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

// ListingPage is the shared shape of every paginated listing response.
type ListingPage struct {
	IDs      []int64          `json:"ids"`
	Listings []*types.Listing `json:"listings"`
}

func (api *API) ListingsList(w http.ResponseWriter, r *http.Request) (int, error) {
	offset, limit, err := pageParams(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	ids, data, err := api.Listings.Listings(r.Context(), offset, limit)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, &ListingPage{IDs: ids, Listings: data})
}

func (api *API) ListingsCount(w http.ResponseWriter, r *http.Request) (int, error) {
	count, err := api.Listings.ListingCount(r.Context())
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, map[string]int{"count": count})
}

func (api *API) UserListingsList(w http.ResponseWriter, r *http.Request) (int, error) {
	lister, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	ids, data, err := api.Listings.UserListings(r.Context(), lister, offset, limit)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, &ListingPage{IDs: ids, Listings: data})
}

func (api *API) UserListingsCount(w http.ResponseWriter, r *http.Request) (int, error) {
	lister, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	count, err := api.Listings.UserListingCount(r.Context(), lister)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, map[string]int{"count": count})
}

func (api *API) AssetListingsList(w http.ResponseWriter, r *http.Request) (int, error) {
	original, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	ids, data, err := api.Listings.AssetListings(r.Context(), original, offset, limit)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, &ListingPage{IDs: ids, Listings: data})
}

func (api *API) AssetListingsCount(w http.ResponseWriter, r *http.Request) (int, error) {
	original, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	count, err := api.Listings.AssetListingCount(r.Context(), original)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, map[string]int{"count": count})
}
