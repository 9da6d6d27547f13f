package api

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ninja-software/terror/v2"
)

type UniverseCreateRequest struct {
	Name             string `json:"name"`
	RentalFeePercent uint16 `json:"rental_fee_percent"`
}

func (api *API) UniverseCreate(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	req := &UniverseCreateRequest{}
	err := json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	id, err := api.Universes.CreateUniverse(r.Context(), account, req.Name, req.RentalFeePercent)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]int64{"universe_id": id})
}

func (api *API) UniverseGet(w http.ResponseWriter, r *http.Request) (int, error) {
	universeID, err := int64Param(r, "universe_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	universe, err := api.Universes.UniverseInfo(r.Context(), universeID)
	if err != nil {
		return http.StatusNotFound, err
	}
	return writeJSON(w, universe)
}

func (api *API) UniverseSetName(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	universeID, err := int64Param(r, "universe_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	req := &struct {
		Name string `json:"name"`
	}{}
	err = json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	err = api.Universes.SetUniverseName(r.Context(), account, universeID, req.Name)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}

func (api *API) UniverseSetFee(w http.ResponseWriter, r *http.Request, account common.Address) (int, error) {
	universeID, err := int64Param(r, "universe_id")
	if err != nil {
		return http.StatusBadRequest, err
	}
	req := &struct {
		RentalFeePercent uint16 `json:"rental_fee_percent"`
	}{}
	err = json.NewDecoder(r.Body).Decode(req)
	if err != nil {
		return http.StatusBadRequest, terror.Error(err, "invalid request body")
	}
	err = api.Universes.SetUniverseRentalFeePercent(r.Context(), account, universeID, req.RentalFeePercent)
	if err != nil {
		return http.StatusBadRequest, err
	}
	return writeJSON(w, map[string]bool{"success": true})
}
