package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"renthub-services/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/ninja-software/terror/v2"
	"github.com/shopspring/decimal"
)

type RentalEstimateRequest struct {
	ListingID    int64  `json:"listing_id"`
	Warper       string `json:"warper"`
	Renter       string `json:"renter"`
	RentalPeriod uint32 `json:"rental_period"`
	PaymentToken string `json:"payment_token"`
}

func (req *RentalEstimateRequest) params() (*types.RentalParams, error) {
	if !common.IsHexAddress(req.Warper) {
		return nil, terror.Error(fmt.Errorf("invalid warper address %q", req.Warper), "invalid warper address")
	}
	if !common.IsHexAddress(req.Renter) {
		return nil, terror.Error(fmt.Errorf("invalid renter address %q", req.Renter), "invalid renter address")
	}
	if !common.IsHexAddress(req.PaymentToken) {
		return nil, terror.Error(fmt.Errorf("invalid payment token %q", req.PaymentToken), "invalid payment token")
	}
	return &types.RentalParams{
		ListingID:    req.ListingID,
		Warper:       common.HexToAddress(req.Warper),
		Renter:       common.HexToAddress(req.Renter),
		RentalPeriod: req.RentalPeriod,
		PaymentToken: common.HexToAddress(req.PaymentToken),
	}, nil
}

func (api *API) RentalEstimate(w http.ResponseWriter, r *http.Request) (int, error) {
	req := &RentalEstimateRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	params, err := req.params()
	if err != nil {
		return http.StatusBadRequest, err
	}
	fees, err := api.Renting.EstimateRent(r.Context(), params)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, fees)
}

type RentalCreateRequest struct {
	ListingID        int64  `json:"listing_id"`
	Warper           string `json:"warper"`
	RentalPeriod     uint32 `json:"rental_period"`
	PaymentToken     string `json:"payment_token"`
	MaxPaymentAmount string `json:"max_payment_amount"`
}

type RentalCreateResponse struct {
	Agreement *types.RentalAgreement    `json:"agreement"`
	Fees      *types.RentalFeeBreakdown `json:"fees"`
}

func (api *API) RentalCreate(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	req := &RentalCreateRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	maxPayment, err := decimal.NewFromString(req.MaxPaymentAmount)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid max payment amount")
	}
	estimate := &RentalEstimateRequest{
		ListingID:    req.ListingID,
		Warper:       req.Warper,
		Renter:       account.Hex(),
		RentalPeriod: req.RentalPeriod,
		PaymentToken: req.PaymentToken,
	}
	params, err := estimate.params()
	if err != nil {
		return http.StatusBadRequest, err
	}

	agreement, fees, err := api.Renting.Rent(r.Context(), params, maxPayment)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, &RentalCreateResponse{Agreement: agreement, Fees: fees})
}

func (api *API) RentalGet(w http.ResponseWriter, r *http.Request) (int, error) {
	rentalID, err := int64Param(r, "rental_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	agreement, err := api.Renting.RentalAgreementInfo(r.Context(), rentalID)
	if err != nil {
		return http.StatusNotFound, err
	}
	return writeJSON(w, agreement)
}

func (api *API) RentalStatus(w http.ResponseWriter, r *http.Request) (int, error) {
	assetID, err := assetIDParams(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	status, err := api.Renting.AssetRentalStatus(r.Context(), assetID)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, map[string]types.RentalStatus{"status": status})
}

func (api *API) CollectionRentedValue(w http.ResponseWriter, r *http.Request) (int, error) {
	renter, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	collectionID := common.HexToHash(chi.URLParam(r, "collection_id"))
	value, err := api.Renting.CollectionRentedValue(r.Context(), collectionID, renter)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, map[string]decimal.Decimal{"value": value})
}

// RentalPage is the shape of the paginated rental response.
type RentalPage struct {
	IDs     []int64                  `json:"ids"`
	Rentals []*types.RentalAgreement `json:"rentals"`
}

func (api *API) UserRentalsList(w http.ResponseWriter, r *http.Request) (int, error) {
	renter, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	offset, limit, err := pageParams(r)
	if err != nil {
		return http.StatusBadRequest, err
	}
	ids, data, err := api.Renting.UserRentalAgreements(r.Context(), renter, offset, limit)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, &RentalPage{IDs: ids, Rentals: data})
}

func (api *API) UserRentalsCount(w http.ResponseWriter, r *http.Request) (int, error) {
	renter, err := addressParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, err
	}
	count, err := api.Renting.UserRentalCount(r.Context(), renter)
	if err != nil {
		return http.StatusInternalServerError, err
	}
	return writeJSON(w, map[string]int{"count": count})
}

// assetIDParams decodes the {class}/{data} URL pair into an asset id. The
// class is the 4 byte hex tag, the data the hex encoded class specific
// payload.
func assetIDParams(r *http.Request) (types.AssetID, error) {
	classBytes, err := hexutil.Decode(chi.URLParam(r, "class"))
	if err != nil {
		return types.AssetID{}, terror.Error(err, "invalid asset class")
	}
	class, err := types.AssetClassFromBytes(classBytes)
	if err != nil {
		return types.AssetID{}, terror.Error(err, "invalid asset class")
	}
	data, err := hexutil.Decode(chi.URLParam(r, "data"))
	if err != nil {
		return types.AssetID{}, terror.Error(err, "invalid asset data")
	}
	return types.AssetID{Class: class, Data: data}, nil
}
